package redemptions

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"djBot/internal/domain"
	"djBot/internal/usecase/music"
)

type announcement struct {
	Key  string
	Vars map[string]string
}

type captureAnnouncer struct {
	got []announcement
}

func (c *captureAnnouncer) Announce(_ context.Context, key string, vars map[string]string) error {
	c.got = append(c.got, announcement{Key: key, Vars: vars})
	return nil
}

func (c *captureAnnouncer) keys() []string {
	out := make([]string, 0, len(c.got))
	for _, a := range c.got {
		out = append(out, a.Key)
	}
	return out
}

type statusUpdate struct {
	RewardID, RedemptionID string
	Status                 domain.RedemptionStatus
}

type fakeRewards struct {
	updates []statusUpdate
	created []domain.RewardSpec
	paused  []bool
	err     error
}

func (f *fakeRewards) UpdateRedemptionStatus(_ context.Context, rewardID, redemptionID string, status domain.RedemptionStatus) error {
	f.updates = append(f.updates, statusUpdate{rewardID, redemptionID, status})
	return nil
}

func (f *fakeRewards) CreateReward(_ context.Context, spec domain.RewardSpec) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.created = append(f.created, spec)
	return "reward-1", nil
}

func (f *fakeRewards) SetRewardPaused(_ context.Context, _ string, paused bool) error {
	f.paused = append(f.paused, paused)
	return nil
}

type fakeBackend struct {
	name   domain.Backend
	track  domain.TrackRef
	err    error
	queued []string
}

func (b *fakeBackend) Name() domain.Backend            { return b.name }
func (b *fakeBackend) ExtractID(string) (string, bool) { return "", false }
func (b *fakeBackend) Skip(context.Context) error      { return nil }

func (b *fakeBackend) Search(context.Context, string) (domain.TrackRef, error) {
	if b.err != nil {
		return domain.TrackRef{}, b.err
	}
	return b.track, nil
}

func (b *fakeBackend) TrackInfo(context.Context, string) (domain.TrackRef, error) {
	return b.track, nil
}

func (b *fakeBackend) Enqueue(_ context.Context, id string) error {
	b.queued = append(b.queued, id)
	return nil
}

func (b *fakeBackend) CurrentTrack(context.Context) (domain.TrackRef, error) {
	return b.track, nil
}

type staticSettings domain.Settings

func (s staticSettings) Get() domain.Settings { return domain.Settings(s) }

type staticLive bool

func (l staticLive) IsLive(context.Context) bool { return bool(l) }

type captureRecorder struct {
	got []*domain.Notification
}

func (c *captureRecorder) Record(_ context.Context, n *domain.Notification) {
	c.got = append(c.got, n)
}

type fixture struct {
	handler   *Handler
	announcer *captureAnnouncer
	rewards   *fakeRewards
	backend   *fakeBackend
	recorder  *captureRecorder
}

func newFixture(t *testing.T, s domain.Settings, live bool, backendErr error) *fixture {
	t.Helper()
	backend := &fakeBackend{
		name:  domain.BackendSpotify,
		track: domain.TrackRef{ID: "t1", Name: "Song", Artist: "Band"},
		err:   backendErr,
	}
	f := &fixture{
		announcer: &captureAnnouncer{},
		rewards:   &fakeRewards{},
		backend:   backend,
		recorder:  &captureRecorder{},
	}
	f.handler = NewHandler(Deps{
		Resolver:  music.NewResolver([]domain.MusicBackend{backend}),
		Settings:  staticSettings(s),
		Live:      staticLive(live),
		Rewards:   f.rewards,
		Announcer: f.announcer,
		Recorder:  f.recorder,
		Logger:    zaptest.NewLogger(t),
	})
	return f
}

func songRedemption(input string) domain.Redemption {
	return domain.Redemption{
		ID:          "red-1",
		RewardID:    "rew-1",
		RewardTitle: "Song Request",
		UserName:    "alice",
		UserInput:   input,
	}
}

func TestIsSongRequest(t *testing.T) {
	assert.True(t, IsSongRequest("Song Request"))
	assert.True(t, IsSongRequest("REQUEST a tune"))
	assert.False(t, IsSongRequest("Hydrate"))
}

func TestRedemptionSuccessFulfills(t *testing.T) {
	f := newFixture(t, domain.DefaultSettings(), true, nil)

	f.handler.Handle(context.Background(), songRedemption("song band"))

	assert.Equal(t, []string{"t1"}, f.backend.queued)
	assert.Equal(t, []statusUpdate{{"rew-1", "red-1", domain.RedemptionFulfilled}}, f.rewards.updates)
	require.Equal(t, []string{"cp_success"}, f.announcer.keys())
	assert.Equal(t, "Song", f.announcer.got[0].Vars["track_name"])
	assert.Equal(t, "Spotify", f.announcer.got[0].Vars["service"])
	require.Len(t, f.recorder.got, 1)
	assert.Equal(t, domain.NotificationRedemption, f.recorder.got[0].Type)
}

func TestRedemptionSuccessWithoutAutoFulfill(t *testing.T) {
	s := domain.DefaultSettings()
	s.AutoFulfillOnSuccess = false
	f := newFixture(t, s, true, nil)

	f.handler.Handle(context.Background(), songRedemption("song band"))

	assert.Empty(t, f.rewards.updates)
	assert.Equal(t, []string{"cp_success"}, f.announcer.keys())
}

func TestRedemptionOfflineRefunds(t *testing.T) {
	s := domain.DefaultSettings()
	s.DisableRequestsOffline = true
	f := newFixture(t, s, false, nil)

	f.handler.Handle(context.Background(), songRedemption("song band"))

	assert.Empty(t, f.backend.queued)
	assert.Equal(t, []string{"cp_offline"}, f.announcer.keys())
	assert.Equal(t, []statusUpdate{{"rew-1", "red-1", domain.RedemptionCanceled}}, f.rewards.updates)
}

func TestRedemptionDisabledRefunds(t *testing.T) {
	s := domain.DefaultSettings()
	s.SpotifyRequestsEnabled = false
	f := newFixture(t, s, true, nil)

	f.handler.Handle(context.Background(), songRedemption("song band"))

	assert.Equal(t, []string{"sr_disabled"}, f.announcer.keys())
	assert.Equal(t, domain.RedemptionCanceled, f.rewards.updates[0].Status)
}

func TestRedemptionEmptyInputIgnored(t *testing.T) {
	f := newFixture(t, domain.DefaultSettings(), true, nil)

	f.handler.Handle(context.Background(), songRedemption("   "))

	assert.Empty(t, f.announcer.got)
	assert.Empty(t, f.rewards.updates)
}

func TestRedemptionFailureRefundPolicy(t *testing.T) {
	noResults := domain.NewMusicError(domain.CodeSearchNoResults, nil)

	f := newFixture(t, domain.DefaultSettings(), true, noResults)
	f.handler.Handle(context.Background(), songRedemption("zzz"))
	require.Equal(t, []string{"cp_error_refunded"}, f.announcer.keys())
	assert.Equal(t, "No results found", f.announcer.got[0].Vars["error_message"])
	assert.Equal(t, domain.RedemptionCanceled, f.rewards.updates[0].Status)

	s := domain.DefaultSettings()
	s.AutoRefundOnError = false
	f = newFixture(t, s, true, noResults)
	f.handler.Handle(context.Background(), songRedemption("zzz"))
	assert.Equal(t, []string{"cp_error_no_refund"}, f.announcer.keys())
	assert.Empty(t, f.rewards.updates)
}

func TestOtherRewardsAreOnlyRecorded(t *testing.T) {
	f := newFixture(t, domain.DefaultSettings(), true, nil)

	f.handler.Handle(context.Background(), domain.Redemption{ID: "x", RewardID: "y", RewardTitle: "Hydrate", UserName: "bob"})

	assert.Empty(t, f.announcer.got)
	assert.Empty(t, f.rewards.updates)
	require.Len(t, f.recorder.got, 1)
	assert.Equal(t, "bob", f.recorder.got[0].Username)
}

func TestRewardSync(t *testing.T) {
	rewards := &fakeRewards{}
	rs := NewRewardSync(rewards, zaptest.NewLogger(t))
	ctx := context.Background()

	s := domain.DefaultSettings()
	require.NoError(t, rs.Ensure(ctx, s))
	assert.Empty(t, rewards.created, "disabled reward is not created")

	s.SongRequestReward.Enabled = true
	require.NoError(t, rs.Ensure(ctx, s))
	require.Len(t, rewards.created, 1)
	assert.Equal(t, domain.RewardSpec{Title: "Song Request", Cost: 300, Prompt: rewardPrompt}, rewards.created[0])
	assert.Equal(t, "reward-1", rs.RewardID())

	next := s
	next.SpotifyRequestsEnabled = false
	require.NoError(t, rs.OnSettingsChange(ctx, s, next))
	require.NoError(t, rs.OnSettingsChange(ctx, next, next))
	assert.Equal(t, []bool{false, true}, rewards.paused)
}

func TestRewardSyncCreateFailureIsNotFatal(t *testing.T) {
	rewards := &fakeRewards{err: errors.New("duplicate")}
	rs := NewRewardSync(rewards, nil)
	s := domain.DefaultSettings()
	s.SongRequestReward.Enabled = true

	require.NoError(t, rs.Ensure(context.Background(), s))
	assert.Empty(t, rs.RewardID())
	assert.Empty(t, rewards.paused)
}
