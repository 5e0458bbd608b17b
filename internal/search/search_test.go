package search

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/dawgsconnect/jobboard/types"
)

func fixtureJobs() []types.JobPosting {
	return []types.JobPosting{
		{ID: "1", Title: "Data Intern", Company: "Globex", Industry: "Finance", JobType: types.JobTypeInternship, Skills: []string{"Python"}},
		{ID: "2", Title: "Backend Engineer", Company: "TechCorp", Industry: "Technology", JobType: types.JobTypeFullTime},
		{ID: "3", Title: "Design Intern", Company: "Initech", Industry: "Design", JobType: types.JobTypeInternship, Description: "Work with the biotech team"},
		{ID: "4", Title: "Contract QA", Company: "Umbrella", Industry: "Healthcare", JobType: types.JobTypeContract, Skills: []string{"Fintech APIs"}},
		{ID: "5", Title: "Marketing Intern", Company: "Hooli", Industry: "Technology", JobType: types.JobTypeInternship},
	}
}

func ids(jobs []types.JobPosting) []string {
	out := make([]string, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, job.ID)
	}
	return out
}

func TestFilterWithoutCriteriaIsIdentity(t *testing.T) {
	jobs := fixtureJobs()
	for _, c := range []Criteria{{}, {JobType: "all", Industry: "all"}, {JobType: "ALL"}} {
		got := Filter(jobs, c)
		if !reflect.DeepEqual(got, jobs) {
			t.Fatalf("criteria %+v changed the collection: %v", c, ids(got))
		}
	}
}

func TestFilterTermMatchesAnyField(t *testing.T) {
	got := ids(Filter(fixtureJobs(), Criteria{Term: "tech", JobType: All, Industry: All}))
	want := []string{"2", "3", "4"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestFilterTermIsNotTrimmed(t *testing.T) {
	cases := []struct {
		term string
		want []string
	}{
		{" tech", []string{}},
		{"   ", []string{}},
		{"tech ", []string{"3", "4"}},
		{" Intern", []string{"1", "3", "5"}},
	}
	for _, tc := range cases {
		got := ids(Filter(fixtureJobs(), Criteria{Term: tc.term}))
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("term %q: got %v, want %v", tc.term, got, tc.want)
		}
	}
}

func TestFilterByJobTypePreservesOrder(t *testing.T) {
	for _, jobType := range []string{"internship", "INTERNSHIP", "Internship"} {
		got := ids(Filter(fixtureJobs(), Criteria{JobType: jobType, Industry: All}))
		want := []string{"1", "3", "5"}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("job type %q: got %v, want %v", jobType, got, want)
		}
	}

	if got := ids(Filter(fixtureJobs(), Criteria{JobType: "full-time"})); !reflect.DeepEqual(got, []string{"2"}) {
		t.Fatalf("unexpected full-time result: %v", got)
	}
	if got := Filter(fixtureJobs(), Criteria{JobType: "volunteer"}); len(got) != 0 {
		t.Fatalf("expected unknown job type to match nothing, got %v", ids(got))
	}
}

func TestFilterCombinesCriteria(t *testing.T) {
	got := ids(Filter(fixtureJobs(), Criteria{Term: "intern", JobType: "internship", Industry: "Technology"}))
	if !reflect.DeepEqual(got, []string{"5"}) {
		t.Fatalf("unexpected result: %v", got)
	}
}

func TestRemoteFilter(t *testing.T) {
	got := Criteria{Term: "go", JobType: "full-time", Industry: "Technology"}.RemoteFilter()
	want := map[string]string{"status": "APPROVED", "job_type": "FULL_TIME", "industry": "Technology"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if got := (Criteria{Term: "go"}).RemoteFilter(); !reflect.DeepEqual(got, map[string]string{"status": "APPROVED"}) {
		t.Fatalf("unexpected term-only filter: %v", got)
	}
}

type fakeRemote struct {
	mu      sync.Mutex
	jobs    []types.JobPosting
	err     error
	filters []map[string]string
}

func (f *fakeRemote) Query(_ context.Context, filter map[string]string) ([]types.JobPosting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	if f.err != nil {
		return nil, f.err
	}
	var out []types.JobPosting
	for _, job := range f.jobs {
		if value, ok := filter["job_type"]; ok && string(job.JobType) != value {
			continue
		}
		if value, ok := filter["industry"]; ok && job.Industry != value {
			continue
		}
		out = append(out, job)
	}
	return out, nil
}

func TestEngineReturnsKnownWithoutCriteria(t *testing.T) {
	remote := &fakeRemote{}
	engine := NewEngine(remote, nil)
	engine.SetKnown(fixtureJobs())

	res := engine.Search(context.Background(), Criteria{JobType: All, Industry: All})
	if !reflect.DeepEqual(res.Jobs, fixtureJobs()) || res.Fallback {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(remote.filters) != 0 {
		t.Fatalf("expected no remote call, got %v", remote.filters)
	}
}

func TestEngineDelegatesAndAppliesTermLocally(t *testing.T) {
	remote := &fakeRemote{jobs: fixtureJobs()}
	engine := NewEngine(remote, nil)

	res := engine.Search(context.Background(), Criteria{Term: "design", JobType: "internship"})
	if res.Fallback {
		t.Fatalf("unexpected fallback")
	}
	if got := ids(res.Jobs); !reflect.DeepEqual(got, []string{"3"}) {
		t.Fatalf("unexpected jobs: %v", got)
	}
	if len(remote.filters) != 1 || remote.filters[0]["job_type"] != "INTERNSHIP" || remote.filters[0]["status"] != "APPROVED" {
		t.Fatalf("unexpected remote filters: %v", remote.filters)
	}
}

func TestEngineFallsBackOnRemoteFailure(t *testing.T) {
	logger, hook := test.NewNullLogger()
	remote := &fakeRemote{err: errors.New("service unavailable")}
	engine := NewEngine(remote, logger)
	engine.SetKnown(fixtureJobs())

	c := Criteria{Term: "tech", JobType: All, Industry: All}
	res := engine.Search(context.Background(), c)
	if !res.Fallback {
		t.Fatalf("expected fallback result")
	}
	if !reflect.DeepEqual(res.Jobs, Filter(fixtureJobs(), c)) {
		t.Fatalf("fallback differs from local filter: %v", ids(res.Jobs))
	}
	if entry := hook.LastEntry(); entry == nil || entry.Level != logrus.WarnLevel {
		t.Fatalf("expected a warning to be logged, got %+v", entry)
	}
}

func TestEngineSequenceIsMonotonic(t *testing.T) {
	engine := NewEngine(&fakeRemote{}, nil)
	first := engine.Search(context.Background(), Criteria{})
	second := engine.Search(context.Background(), Criteria{})
	if second.Seq <= first.Seq {
		t.Fatalf("expected increasing sequence, got %d then %d", first.Seq, second.Seq)
	}
}

func TestTrackerDiscardsStaleResponses(t *testing.T) {
	var tracker Tracker
	slow := tracker.Dispatch()
	fast := tracker.Dispatch()

	if !tracker.Accept(fast) {
		t.Fatalf("expected latest response to be accepted")
	}
	if tracker.Accept(slow) {
		t.Fatalf("expected older response to be discarded")
	}
}

func TestKnownReturnsCopy(t *testing.T) {
	engine := NewEngine(&fakeRemote{}, nil)
	engine.SetKnown(fixtureJobs())
	known := engine.Known()
	known[0].Title = "changed"
	if engine.Known()[0].Title == "changed" {
		t.Fatalf("Known leaked internal state")
	}
}
