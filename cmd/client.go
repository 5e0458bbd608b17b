/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dawgsconnect/jobboard/config"
	"github.com/dawgsconnect/jobboard/internal/client"
	"github.com/dawgsconnect/jobboard/internal/handlers"
	"github.com/dawgsconnect/jobboard/internal/search"
	"github.com/dawgsconnect/jobboard/internal/session"
	"github.com/dawgsconnect/jobboard/types"
)

var (
	formValues    map[string]string
	loginPassword string
	refreshMe     bool
	jobsCriteria  search.Criteria
	jobsPage      int
	jobsLimit     int
	jobsWatch     bool
	validateField string
)

// newClient restores the saved session and builds an API client.
func newClient() (*client.Client, *session.Session, error) {
	cfg, err := config.LoadClientConfig()
	if err != nil {
		return nil, nil, err
	}
	sess := session.New(session.NewFileStore(cfg.SessionDir))
	if err := sess.Restore(); err != nil {
		return nil, nil, fmt.Errorf("restore session: %w", err)
	}
	return client.New(cfg.ServerURL, cfg.Timeout, sess), sess, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// describeError expands field errors so they can be fixed one by one.
func describeError(err error) error {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || len(apiErr.Fields) == 0 {
		return err
	}
	lines := make([]string, 0, len(apiErr.Fields))
	for field, msg := range apiErr.Fields {
		lines = append(lines, fmt.Sprintf("  %s: %s", field, msg))
	}
	return fmt.Errorf("%s\n%s", apiErr.Error(), strings.Join(lines, "\n"))
}

func printJobs(w io.Writer, list handlers.JobListResponse) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCOMPANY\tTYPE\tINDUSTRY\tDEADLINE")
	for _, job := range list.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			job.ID, job.Title, job.Company, job.JobType, job.Industry, job.Deadline.Format("2006-01-02"))
	}
	_ = tw.Flush()
	footer := fmt.Sprintf("page %d, %d of %d jobs", list.Page, len(list.Items), list.Total)
	if list.Fallback {
		footer += " (offline results)"
	}
	fmt.Fprintln(w, footer)
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	Example: `  jobboard register --field firstName=Ada --field lastName=Lovelace \
    --field email=ada@example.com --field password=Passw0rdOK \
    --field confirmPassword=Passw0rdOK --field role=STUDENT \
    --field major="Computer Science" --field graduationYear=2027`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := newClient()
		if err != nil {
			return err
		}
		out, err := c.Register(cmd.Context(), formValues)
		if err != nil {
			return describeError(err)
		}
		if out.ConfirmationRequired {
			fmt.Fprintf(cmd.OutOrStdout(), "Account created for %s. Check your email for a verification code, then run: jobboard confirm %s <code>\n", out.User.Email, out.User.Email)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Account created for %s. You can now log in.\n", out.User.Email)
		return nil
	},
}

var confirmCmd = &cobra.Command{
	Use:   "confirm <email> <code>",
	Short: "Confirm a new account with its verification code",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := newClient()
		if err != nil {
			return err
		}
		if err := c.Confirm(cmd.Context(), args[0], args[1]); err != nil {
			return describeError(err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Email verified. You can now log in.")
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Sign in and remember the session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := newClient()
		if err != nil {
			return err
		}
		password := loginPassword
		if password == "" {
			fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			password = strings.TrimRight(line, "\r\n")
		}
		state, err := c.Login(cmd.Context(), args[0], password)
		if err != nil {
			return describeError(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s %s (%s)\n", state.User.FirstName, state.User.LastName, state.User.Role)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := newClient()
		if err != nil {
			return err
		}
		if err := c.Logout(cmd.Context()); err != nil && !errors.Is(err, session.ErrNoSession) {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, sess, err := newClient()
		if err != nil {
			return err
		}
		if refreshMe {
			user, err := c.Me(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), user)
		}
		state, ok := sess.Current()
		if !ok {
			return session.ErrNoSession
		}
		return printJSON(cmd.OutOrStdout(), state.User)
	},
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Browse approved job postings",
	Long: `Browse approved job postings. With --watch, each line read from stdin
is a new search term; results of superseded searches are discarded.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := newClient()
		if err != nil {
			return err
		}
		if !jobsWatch {
			list, err := c.Jobs(cmd.Context(), jobsCriteria, jobsPage, jobsLimit)
			if err != nil {
				return err
			}
			printJobs(cmd.OutOrStdout(), list)
			return nil
		}

		var (
			tracker search.Tracker
			wg      sync.WaitGroup
			mu      sync.Mutex
		)
		out := cmd.OutOrStdout()
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			criteria := jobsCriteria
			criteria.Term = scanner.Text()
			seq := tracker.Dispatch()

			wg.Add(1)
			go func() {
				defer wg.Done()
				list, err := c.Jobs(cmd.Context(), criteria, jobsPage, jobsLimit)
				mu.Lock()
				defer mu.Unlock()
				if !tracker.Accept(seq) {
					return
				}
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "search failed: %v\n", err)
					return
				}
				fmt.Fprintf(out, "results for %q\n", criteria.Term)
				printJobs(out, list)
			}()
		}
		wg.Wait()
		return scanner.Err()
	},
}

var jobCmd = &cobra.Command{
	Use:   "job <id>",
	Short: "Show one job posting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := newClient()
		if err != nil {
			return err
		}
		job, err := c.Job(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), job)
	},
}

var myJobsCmd = &cobra.Command{
	Use:   "my-jobs",
	Short: "List the postings you created",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := newClient()
		if err != nil {
			return err
		}
		jobs, err := c.MyJobs(cmd.Context())
		if err != nil {
			return err
		}
		printJobs(cmd.OutOrStdout(), handlers.JobListResponse{Items: jobs, Page: 1, Total: len(jobs)})
		return nil
	},
}

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Submit a job posting for review",
	Example: `  jobboard post --field title="Backend Intern" --field company=Acme \
    --field jobType=internship --field industry=Technology \
    --field description="..." --field responsibilities="..." \
    --field requiredSkills="Go, SQL" --field deadline=2027-01-31 \
    --field contactMethod=email --field contactValue=jobs@acme.test`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := newClient()
		if err != nil {
			return err
		}
		job, err := c.CreateJob(cmd.Context(), formValues)
		if err != nil {
			return describeError(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Job %s submitted (%s)\n", job.ID, job.Status)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <id> <status>",
	Short: "Move a posting to a new status (APPROVED, ARCHIVED, ...)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := newClient()
		if err != nil {
			return err
		}
		job, err := c.SetStatus(cmd.Context(), args[0], types.JobStatus(strings.ToUpper(args[1])))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Job %s is now %s\n", job.ID, job.Status)
		return nil
	},
}

var applyCmd = &cobra.Command{
	Use:   "apply <id>",
	Short: "Start an application and print where to send it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := newClient()
		if err != nil {
			return err
		}
		action, err := c.Apply(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", action.Kind, action.URL)
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:       "validate <account|job>",
	Short:     "Check form values without submitting them",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"account", "job"},
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := newClient()
		if err != nil {
			return err
		}
		var out handlers.ValidateResponse
		switch args[0] {
		case "account":
			out, err = c.ValidateAccount(cmd.Context(), validateField, formValues)
		case "job":
			out, err = c.ValidateJob(cmd.Context(), validateField, formValues)
		default:
			return fmt.Errorf("unknown form %q", args[0])
		}
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), out)
	},
}

func init() {
	for _, c := range []*cobra.Command{registerCmd, postCmd, validateCmd} {
		c.Flags().StringToStringVar(&formValues, "field", map[string]string{}, "form field as name=value (repeatable)")
	}
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "password (read from stdin when empty)")
	whoamiCmd.Flags().BoolVar(&refreshMe, "refresh", false, "fetch the profile from the server")
	validateCmd.Flags().StringVar(&validateField, "only", "", "validate a single field")

	jobsCmd.Flags().StringVar(&jobsCriteria.Term, "q", "", "search term")
	jobsCmd.Flags().StringVar(&jobsCriteria.JobType, "type", "", "job type (internship, full-time, contract)")
	jobsCmd.Flags().StringVar(&jobsCriteria.Industry, "industry", "", "industry")
	jobsCmd.Flags().IntVar(&jobsPage, "page", 0, "page number")
	jobsCmd.Flags().IntVar(&jobsLimit, "limit", 0, "page size")
	jobsCmd.Flags().BoolVar(&jobsWatch, "watch", false, "read search terms from stdin")

	rootCmd.AddCommand(registerCmd, confirmCmd, loginCmd, logoutCmd, whoamiCmd,
		jobsCmd, jobCmd, myJobsCmd, postCmd, statusCmd, applyCmd, validateCmd)
}
