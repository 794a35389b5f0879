package commands

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"djBot/internal/domain"
	"djBot/internal/usecase/music"
	"djBot/internal/usecase/template"
)

type memAliasSaver struct {
	saved domain.AliasTable
	err   error
}

func (s *memAliasSaver) SaveAliases(t domain.AliasTable) error {
	if s.err != nil {
		return s.err
	}
	s.saved = t
	return nil
}

type memCommandSaver struct {
	saved map[string]*domain.CustomCommand
	err   error
}

func (s *memCommandSaver) SaveCommands(cmds map[string]*domain.CustomCommand) error {
	if s.err != nil {
		return s.err
	}
	s.saved = cmds
	return nil
}

func newCmdContext(out *recordingOut, invoked string, args ...string) *Context {
	raw := invoked
	for _, a := range args {
		raw += " " + a
	}
	return &Context{
		Message: domain.Message{Platform: domain.PlatformTwitch, ChannelID: "chan", Username: "alice"},
		Out:     out,
		Invoked: invoked,
		Raw:     raw,
		Args:    args,
	}
}

func TestAliasManagerLoadKeepsFirstOwner(t *testing.T) {
	m := NewAliasManager(nil, domain.AliasTable{
		"!b": {"!x", "!y"},
		"!a": {"!x"},
	}, zaptest.NewLogger(t))

	owner, ok := m.Owner("!X")
	require.True(t, ok)
	assert.Equal(t, "!a", owner)

	want := []AliasPair{{Alias: "!x", Main: "!a"}, {Alias: "!y", Main: "!b"}}
	if diff := cmp.Diff(want, m.List()); diff != "" {
		t.Fatalf("aliases mismatch (-want +got):\n%s", diff)
	}
}

func TestAliasManagerRewrite(t *testing.T) {
	m := NewAliasManager(nil, domain.AliasTable{
		"!donate":       {"!tip"},
		"!editcom !duo": {"!setduo"},
	}, nil)

	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"!tip", "!donate", true},
		{"!Tip 5 bucks", "!donate 5 bucks", true},
		{"!tips", "!tips", false},
		{"!setduo new text", "!editcom !duo new text", true},
		{"hello", "hello", false},
	}
	for _, tc := range cases {
		got, ok := m.Rewrite(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestAliasManagerAddConflictAndMove(t *testing.T) {
	saver := &memAliasSaver{}
	m := NewAliasManager(saver, nil, nil)

	require.NoError(t, m.Add("!sr", "!play"))
	assert.Equal(t, domain.AliasTable{"!sr": {"!play"}}, saver.saved)

	err := m.Add("!song", "!play")
	require.ErrorIs(t, err, ErrAliasExists)

	require.NoError(t, m.Move("!song", "!play"))
	owner, _ := m.Owner("!play")
	assert.Equal(t, "!song", owner)
	assert.Equal(t, domain.AliasTable{"!song": {"!play"}}, saver.saved)

	ok, err := m.Delete("!play")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = m.Delete("!play")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAliasManagerSaveFailureKeepsState(t *testing.T) {
	saver := &memAliasSaver{err: errors.New("disk full")}
	m := NewAliasManager(saver, nil, nil)

	require.Error(t, m.Add("!sr", "!play"))
	_, ok := m.Owner("!play")
	assert.False(t, ok)
}

func TestCustomCommandManagerLifecycle(t *testing.T) {
	saver := &memCommandSaver{}
	m := NewCustomCommandManager(saver, nil)

	created, err := m.Add("!Hello", "hi {user}")
	require.NoError(t, err)
	assert.True(t, created)
	require.Contains(t, saver.saved, "!hello")

	created, err = m.Add("!hello", "hey")
	require.NoError(t, err)
	assert.False(t, created)

	found, err := m.Edit("!hello", "hello {user}")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "hello {user}", m.Find("!HELLO").Response)

	found, err = m.Edit("!missing", "x")
	require.NoError(t, err)
	assert.False(t, found)

	deleted, err := m.Delete("!hello")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Nil(t, m.Find("!hello"))
}

func TestCustomCommandManagerFindReturnsClone(t *testing.T) {
	m := NewCustomCommandManager(nil, customs("!a", "one"))
	m.Find("!a").Response = "mutated"
	assert.Equal(t, "one", m.Find("!a").Response)
}

func TestCustomCommandManagerSaveFailureKeepsSnapshot(t *testing.T) {
	saver := &memCommandSaver{err: errors.New("read-only")}
	m := NewCustomCommandManager(saver, customs("!a", "one"))

	_, err := m.Add("!b", "two")
	require.Error(t, err)
	assert.Equal(t, []string{"!a"}, m.Triggers())
}

type recordingSyncer struct {
	native, custom []string
}

func (s *recordingSyncer) Sync(native, custom []string) (bool, error) {
	s.native, s.custom = native, custom
	return true, nil
}

func TestManageCustomCommandReplies(t *testing.T) {
	manager := NewCustomCommandManager(nil, nil)
	manager.SetReservedChecker(func(name string) bool { return name == "!sr" })
	syncer := &recordingSyncer{}
	cmd := NewManageCustomCommand(manager, syncer, func() []string { return []string{"!sr"} }, nil)
	ctx := context.Background()
	out := &recordingOut{}

	require.NoError(t, cmd.Handle(ctx, newCmdContext(out, "commands")))
	require.NoError(t, cmd.Handle(ctx, newCmdContext(out, "addcom", "!hug", "hugs", "{touser}")))
	require.NoError(t, cmd.Handle(ctx, newCmdContext(out, "addcom", "!sr", "nope")))
	require.NoError(t, cmd.Handle(ctx, newCmdContext(out, "editcom", "!nothere", "x")))
	require.NoError(t, cmd.Handle(ctx, newCmdContext(out, "commands", "edit", "!hug", "big", "hug")))
	require.NoError(t, cmd.Handle(ctx, newCmdContext(out, "commands")))
	require.NoError(t, cmd.Handle(ctx, newCmdContext(out, "delcom", "!hug")))
	require.NoError(t, cmd.Handle(ctx, newCmdContext(out, "addcom", "!hug")))

	assert.Equal(t, []string{
		"No custom commands.",
		"Command !hug added.",
		"Cannot overwrite native command !sr",
		"Command !nothere not found.",
		"Command !hug updated.",
		"Custom commands: !hug",
		"Command !hug deleted.",
		"Usage: !addcom !name response",
	}, out.texts())
	assert.Equal(t, []string{"!sr"}, syncer.native)
	assert.Equal(t, []string{"!hug"}, syncer.custom)
}

func TestAliasCommandReplies(t *testing.T) {
	aliases := NewAliasManager(nil, nil, nil)
	cmd := NewAliasCommand(aliases)
	ctx := context.Background()
	out := &recordingOut{}

	require.NoError(t, cmd.Handle(ctx, newCmdContext(out, "alias")))
	require.NoError(t, cmd.Handle(ctx, newCmdContext(out, "addalias", "sr", "play")))
	require.NoError(t, cmd.Handle(ctx, newCmdContext(out, "addalias", "!song", "!play")))
	require.NoError(t, cmd.Handle(ctx, newCmdContext(out, "editalias", "!song", "!play")))
	require.NoError(t, cmd.Handle(ctx, newCmdContext(out, "alias", "list")))
	require.NoError(t, cmd.Handle(ctx, newCmdContext(out, "delalias", "!play")))
	require.NoError(t, cmd.Handle(ctx, newCmdContext(out, "alias", "del", "!play")))

	assert.Equal(t, []string{
		"No command aliases.",
		"Alias !play added for !sr",
		"Alias !play already exists for !sr",
		"Alias !play now points to !song",
		"Command aliases: !play→!song",
		"Alias !play deleted.",
		"Alias !play not found.",
	}, out.texts())
}

func TestBestCategory(t *testing.T) {
	options := []domain.CategoryOption{
		{ID: "1", Name: "Overwatch"},
		{ID: "2", Name: "Overwatch 2"},
		{ID: "3", Name: "Just Chatting"},
	}
	assert.Equal(t, "2", bestCategory("overwatch 2", options).ID)
	assert.Equal(t, "3", bestCategory("just chatin", options).ID)
	assert.InDelta(t, 1.0, similarity("abc", "abc"), 1e-9)
	assert.InDelta(t, 0.0, similarity("abc", "xyz"), 1e-9)
	assert.InDelta(t, 0.5, similarity("abcd", "bcde"), 1e-9)
	assert.Equal(t, "1", bestCategory("overwach", options).ID)
}

type fakeChannel struct {
	info       domain.ChannelInfo
	categories []domain.CategoryOption
	setGame    string
	setTitle   string
}

func (f *fakeChannel) ChannelInfo(context.Context) (domain.ChannelInfo, error) {
	return f.info, nil
}

func (f *fakeChannel) SetTitle(_ context.Context, title string) error {
	f.setTitle = title
	return nil
}

func (f *fakeChannel) SetCategory(_ context.Context, id string) error {
	f.setGame = id
	return nil
}

func (f *fakeChannel) CreateClip(context.Context) (string, error) {
	return "Clip123", nil
}

func (f *fakeChannel) SearchCategories(context.Context, string) ([]domain.CategoryOption, error) {
	return f.categories, nil
}

func TestGameCommandUsesAliases(t *testing.T) {
	twitch := &fakeChannel{
		info:       domain.ChannelInfo{GameName: "Just Chatting"},
		categories: []domain.CategoryOption{{ID: "9", Name: "Overwatch 2"}},
	}
	cmd := NewGameCommand(twitch, nil, NewGameAliases(map[string]string{"OW2": "Overwatch 2"}), nil)
	ctx := context.Background()
	out := &recordingOut{}

	require.NoError(t, cmd.Handle(ctx, newCmdContext(out, "game")))
	require.NoError(t, cmd.Handle(ctx, newCmdContext(out, "game", "ow2")))

	assert.Equal(t, "9", twitch.setGame)
	assert.Equal(t, []string{"Current Game: Just Chatting", "Game updated to: Overwatch 2"}, out.texts())
}

func TestClipAndTitleCommands(t *testing.T) {
	twitch := &fakeChannel{info: domain.ChannelInfo{Title: "old"}}
	ctx := context.Background()
	out := &recordingOut{}

	require.NoError(t, NewClipCommand(twitch, nil).Handle(ctx, newCmdContext(out, "clip")))
	title := NewTitleCommand(twitch, nil, nil)
	require.NoError(t, title.Handle(ctx, newCmdContext(out, "title")))
	require.NoError(t, title.Handle(ctx, newCmdContext(out, "title", "new", "title")))

	assert.Equal(t, "new title", twitch.setTitle)
	assert.Equal(t, []string{
		"🎬 Clip created! https://clips.twitch.tv/Clip123",
		"Current Title: old",
		"Title updated to: new title",
	}, out.texts())
}

type stubMusic struct {
	name    domain.Backend
	track   domain.TrackRef
	err     error
	current domain.TrackRef
}

func (s *stubMusic) Name() domain.Backend                  { return s.name }
func (s *stubMusic) ExtractID(string) (string, bool)       { return "", false }
func (s *stubMusic) Enqueue(context.Context, string) error { return s.err }
func (s *stubMusic) Skip(context.Context) error            { return s.err }

func (s *stubMusic) Search(context.Context, string) (domain.TrackRef, error) {
	if s.err != nil {
		return domain.TrackRef{}, s.err
	}
	return s.track, nil
}

func (s *stubMusic) TrackInfo(context.Context, string) (domain.TrackRef, error) { return s.track, nil }

func (s *stubMusic) CurrentTrack(context.Context) (domain.TrackRef, error) {
	if s.err != nil {
		return domain.TrackRef{}, s.err
	}
	return s.current, nil
}

type staticSettings domain.Settings

func (s staticSettings) Get() domain.Settings { return domain.Settings(s) }

type staticLive bool

func (l staticLive) IsLive(context.Context) bool { return bool(l) }

type recordingRecorder struct {
	got []*domain.Notification
}

func (r *recordingRecorder) Record(_ context.Context, n *domain.Notification) {
	r.got = append(r.got, n)
}

func newTestResponder(t *testing.T, overrides map[string]domain.Response) *Responder {
	return NewResponder(template.New(nil), overrides, zaptest.NewLogger(t))
}

func TestSongRequestSuccess(t *testing.T) {
	backend := &stubMusic{name: domain.BackendSpotify, track: domain.TrackRef{ID: "abc", Name: "Song", Artist: "Band"}}
	resolver := music.NewResolver([]domain.MusicBackend{backend})
	rec := &recordingRecorder{}
	cmd := NewSongRequestCommand(resolver, staticSettings(domain.DefaultSettings()), staticLive(true), newTestResponder(t, nil), rec, nil)
	out := &recordingOut{}

	require.NoError(t, cmd.Handle(context.Background(), newCmdContext(out, "sr", "song", "band")))

	assert.Equal(t, []string{"@alice added Song by Band to the Queue!"}, out.texts())
	require.Len(t, rec.got, 1)
	assert.Equal(t, domain.NotificationSongRequest, rec.got[0].Type)
	assert.Equal(t, "song band", rec.got[0].Metadata["query"])
}

func TestSongRequestErrorMapsToResponseKey(t *testing.T) {
	backend := &stubMusic{name: domain.BackendSpotify, err: domain.NewMusicError(domain.CodeSearchNoResults, nil)}
	resolver := music.NewResolver([]domain.MusicBackend{backend})
	cmd := NewSongRequestCommand(resolver, staticSettings(domain.DefaultSettings()), nil, newTestResponder(t, nil), nil, nil)
	out := &recordingOut{}

	require.NoError(t, cmd.Handle(context.Background(), newCmdContext(out, "sr", "zzzz")))

	assert.Equal(t, []string{"@alice no results found for 'zzzz'."}, out.texts())
}

func TestSongRequestGates(t *testing.T) {
	backend := &stubMusic{name: domain.BackendSpotify}
	resolver := music.NewResolver([]domain.MusicBackend{backend})
	ctx := context.Background()

	offline := domain.DefaultSettings()
	offline.DisableRequestsOffline = true
	out := &recordingOut{}
	cmd := NewSongRequestCommand(resolver, staticSettings(offline), staticLive(false), newTestResponder(t, nil), nil, nil)
	require.NoError(t, cmd.Handle(ctx, newCmdContext(out, "sr", "x")))

	disabled := domain.DefaultSettings()
	disabled.SpotifyRequestsEnabled = false
	cmd = NewSongRequestCommand(resolver, staticSettings(disabled), staticLive(true), newTestResponder(t, nil), nil, nil)
	require.NoError(t, cmd.Handle(ctx, newCmdContext(out, "sr", "x")))

	cmd = NewSongRequestCommand(resolver, staticSettings(domain.DefaultSettings()), nil, newTestResponder(t, nil), nil, nil)
	require.NoError(t, cmd.Handle(ctx, newCmdContext(out, "sr")))

	assert.Equal(t, []string{
		"@alice Stream is offline, song requests are disabled.",
		"Requests are disabled.",
		"Usage: !sr <song name or link>",
	}, out.texts())
}

func TestResponderMissingAndDisabled(t *testing.T) {
	r := newTestResponder(t, map[string]domain.Response{
		"song_success": {Template: "custom {track_name}", Enabled: true},
		"skip_success": {Template: "skipped", Enabled: false},
	})
	ctx := context.Background()

	text, ok := r.Text(ctx, "song_success", map[string]string{"track_name": "X"})
	assert.True(t, ok)
	assert.Equal(t, "custom X", text)

	_, ok = r.Text(ctx, "skip_success", nil)
	assert.False(t, ok)

	text, ok = r.Text(ctx, "nope", nil)
	assert.True(t, ok)
	assert.Equal(t, "[Bot Error: Missing response template 'nope']", text)
}

func TestWinnerPicksActiveChatter(t *testing.T) {
	chatters := NewActiveChatters()
	rec := &recordingRecorder{}
	cmd := NewWinnerCommand(chatters, rec, nil)
	out := &recordingOut{}
	ctx := context.Background()

	require.NoError(t, cmd.Handle(ctx, newCmdContext(out, "winner")))
	chatters.ObserveLine(domain.Message{Username: "bob"})
	require.NoError(t, cmd.Handle(ctx, newCmdContext(out, "winner")))

	assert.Equal(t, []string{"No active chatters to pick from!", "The winner is @bob!"}, out.texts())
	require.Len(t, rec.got, 1)
	assert.Equal(t, "bob", rec.got[0].Username)
}

func TestServiceListsBuiltinsAndCustoms(t *testing.T) {
	manager := NewCustomCommandManager(nil, customs("!hello", "hi"))
	aliases := NewAliasManager(nil, domain.AliasTable{"!hello": {"!hi"}}, nil)
	svc := NewService(manager, aliases, nil)

	list := svc.List()
	last := list[len(list)-1]
	assert.Equal(t, "!hello", last.Name)
	assert.Equal(t, CommandSourceCustom, last.Source)
	assert.Equal(t, []string{"!hi"}, last.Aliases)
	assert.Equal(t, []string{"everyone"}, last.Permissions)
	assert.Equal(t, "!sr", list[0].Name)
	assert.Equal(t, []string{"moderator", "broadcaster"}, list[0].Permissions)
}
