package voting

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Togather-Foundation/trustdirectory/internal/domain/facility"
	"github.com/Togather-Foundation/trustdirectory/internal/storage/memory"
)

func seedFacility(t *testing.T, repo facility.Repository, id string) {
	t.Helper()
	require.NoError(t, repo.UpsertFacility(context.Background(), facility.Facility{
		ID: id, Jurisdiction: "los_angeles_county", SourceKey: id, Name: "X",
		TrustScore: 80, Band: "good",
	}))
}

// S5 from the spec's seeded end-to-end scenarios.
func TestVoteScenarioS5(t *testing.T) {
	repo := memory.New()
	seedFacility(t, repo, "facility-x")
	svc := New(repo, Limits{Cooldown: 60 * time.Second, Window: 10 * time.Minute, MaxPerWindow: 20})
	defer svc.Stop()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	summary, err := svc.Vote(context.Background(), "client-a", "facility-x", facility.VoteLike, base)
	require.NoError(t, err)
	require.Equal(t, facility.VoteSummary{Likes: 1, Dislikes: 0, VoteScore: 1}, summary)

	summary, err = svc.Vote(context.Background(), "client-b", "facility-x", facility.VoteLike, base.Add(time.Second))
	require.NoError(t, err)
	require.Equal(t, facility.VoteSummary{Likes: 2, Dislikes: 0, VoteScore: 2}, summary)

	_, err = svc.Vote(context.Background(), "client-a", "facility-x", facility.VoteLike, base.Add(30*time.Second))
	require.ErrorIs(t, err, ErrRateLimited)

	got, err := repo.GetFacility(context.Background(), "facility-x")
	require.NoError(t, err)
	require.Equal(t, 2, got.Likes)
	require.Equal(t, 0, got.Dislikes)
}

func TestVoteCooldownAllowsAfterWindow(t *testing.T) {
	repo := memory.New()
	seedFacility(t, repo, "facility-y")
	svc := New(repo, Limits{Cooldown: 60 * time.Second, Window: 10 * time.Minute, MaxPerWindow: 20})
	defer svc.Stop()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.Vote(context.Background(), "client-a", "facility-y", facility.VoteLike, base)
	require.NoError(t, err)

	_, err = svc.Vote(context.Background(), "client-a", "facility-y", facility.VoteLike, base.Add(61*time.Second))
	require.NoError(t, err)
}

func TestVoteRollingWindowCap(t *testing.T) {
	repo := memory.New()
	seedFacility(t, repo, "facility-z")
	svc := New(repo, Limits{Cooldown: time.Millisecond, Window: time.Minute, MaxPerWindow: 3})
	defer svc.Stop()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := svc.Vote(context.Background(), "client-a", "facility-z", facility.VoteLike, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
	}

	_, err := svc.Vote(context.Background(), "client-a", "facility-z", facility.VoteLike, base.Add(3*time.Second))
	require.ErrorIs(t, err, ErrRateLimited)
}

func TestVoteRejectsUnknownKind(t *testing.T) {
	repo := memory.New()
	seedFacility(t, repo, "facility-w")
	svc := New(repo, Limits{})
	defer svc.Stop()

	_, err := svc.Vote(context.Background(), "client-a", "facility-w", facility.VoteKind("love"), time.Now())
	require.ErrorIs(t, err, ErrInvalidVote)
}

func TestVoteNotFoundReleasesReservation(t *testing.T) {
	repo := memory.New()
	svc := New(repo, Limits{Cooldown: time.Minute})
	defer svc.Stop()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.Vote(context.Background(), "client-a", "does-not-exist", facility.VoteLike, now)
	require.ErrorIs(t, err, facility.ErrNotFound)

	seedFacility(t, repo, "facility-v")
	summary, err := svc.Vote(context.Background(), "client-a", "facility-v", facility.VoteLike, now.Add(time.Second))
	require.NoError(t, err, "a failed vote must not consume the client's cooldown slot")
	require.Equal(t, 1, summary.Likes)
}
