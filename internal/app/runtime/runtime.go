// Package runtime wires the bot: storage, config snapshots, the command
// router, chat adapters, EventSub and the HTTP surface.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"djBot/internal/app"
	"djBot/internal/app/dispatch"
	"djBot/internal/app/events"
	"djBot/internal/domain"
	"djBot/internal/infrastructure/config"
	"djBot/internal/infrastructure/eventsub"
	"djBot/internal/infrastructure/music/cider"
	"djBot/internal/infrastructure/music/spotify"
	"djBot/internal/infrastructure/persistence/jsonstore"
	sqlitestorage "djBot/internal/infrastructure/persistence/sqlite"
	kickinfra "djBot/internal/infrastructure/platform/kick"
	twitchinfra "djBot/internal/infrastructure/platform/twitch"
	kickadapter "djBot/internal/interface/adapters/kick"
	twitchadapter "djBot/internal/interface/adapters/twitch"
	ws "djBot/internal/interface/api/ws"
	"djBot/internal/interface/outs"
	"djBot/internal/usecase/commands"
	"djBot/internal/usecase/counters"
	"djBot/internal/usecase/gate"
	"djBot/internal/usecase/handle_message"
	"djBot/internal/usecase/music"
	"djBot/internal/usecase/notifications"
	"djBot/internal/usecase/redemptions"
	"djBot/internal/usecase/settings"
	statususecase "djBot/internal/usecase/status"
	"djBot/internal/usecase/template"
	"djBot/internal/usecase/timers"
)

type Options struct {
	// Config se carga desde el entorno cuando es nil.
	Config *config.Config
	Logger *zap.Logger
}

type Runtime struct {
	cfg    *config.Config
	logger *zap.Logger

	db    *sqlitestorage.Store
	store *jsonstore.Store
	bus   *events.Bus

	settings  *settings.Holder
	responder *commands.Responder
	perms     *gate.Permissions
	cooldowns *gate.Cooldowns
	custom    *commands.CustomCommandManager
	aliases   *commands.AliasManager
	games     *commands.GameAliases
	timers    *timers.Scheduler
	router    *commands.Router
	status    *statususecase.Resolver

	dispatcher *dispatch.Dispatcher
	platform   *app.PlatformManager
	twitchAPI  *twitchinfra.TwitchStreamService
	rewards    *redemptions.RewardSync
	eventsub   *eventsub.Client
	server     *ws.Server
}

// New builds every component. Nothing connects until Run.
func New(ctx context.Context, opts Options) (*Runtime, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := opts.Config
	if cfg == nil {
		loaded, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("runtime: load config: %w", err)
		}
		cfg = loaded
	}
	tuning := cfg.Tuning

	db, err := sqlitestorage.NewStore(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("runtime: %w", err)
	}
	store, err := jsonstore.New(cfg.DataDir, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("runtime: %w", err)
	}

	r := &Runtime{
		cfg:    cfg,
		logger: logger,
		db:     db,
		store:  store,
		bus:    events.NewBus(logger),
	}

	r.importLegacyCounters(ctx)
	counterStore := counters.NewStore(db)
	eventLogger := notifications.NewEventLogger(db, r.bus, logger)

	r.status = statususecase.NewResolver(tuning.StatusTTL, logger)
	twitchLive := r.status.For(domain.PlatformTwitch)

	var twitchChannel domain.TwitchChannelService
	if cfg.TwitchAPIEnabled() {
		svc, err := twitchinfra.NewStreamService(twitchinfra.Config{
			ClientID:         cfg.TwitchClientId,
			AccessToken:      cfg.TwitchApiToken,
			BroadcasterID:    cfg.TwitchBroadcasterId,
			BroadcasterLogin: cfg.TwitchStreamerLogin,
			Timeout:          tuning.Helix,
		})
		if err != nil {
			logger.Warn("runtime: twitch api disabled", zap.Error(err))
		} else {
			r.twitchAPI = svc
			twitchChannel = svc
			r.status.Set(domain.PlatformTwitch, svc)
		}
	}

	var kickStream domain.KickStreamService
	if cfg.KickToken != "" {
		svc, err := kickinfra.NewStreamService(cfg.KickToken)
		if err != nil {
			logger.Warn("runtime: kick api disabled", zap.Error(err))
		} else {
			kickStream = svc
		}
	}

	engine := template.New(counterStore,
		template.WithLiveLookup(twitchLive),
		template.WithHTTPClient(&http.Client{Timeout: tuning.URLFetch}),
		template.WithLogger(logger))

	r.loadSnapshots(engine)

	spotifyClient := spotify.New(ctx, spotify.Config{
		ClientID:      cfg.SpotifyClientID,
		ClientSecret:  cfg.SpotifyClientSecret,
		RefreshToken:  cfg.SpotifyRefreshToken,
		Timeout:       tuning.Spotify,
		SearchTimeout: tuning.Search,
		Logger:        logger,
	})
	ciderClient := cider.New(cider.Config{
		Host:           cfg.CiderHost,
		Token:          cfg.CiderAPIToken,
		ControlTimeout: tuning.CiderControl,
		SearchTimeout:  tuning.Search,
		Logger:         logger,
	})
	resolver := music.NewResolver(
		[]domain.MusicBackend{spotifyClient, ciderClient},
		music.WithRetryDelay(tuning.RetryDelay),
		music.WithPlaylistURL(func() string { return r.settings.Get().SpotifyPlaylistURL }),
		music.WithLogger(logger))

	multiOut := outs.NewMultiSender()
	r.platform = app.NewPlatformManager(app.ManagerConfig{MultiOut: multiOut, Logger: logger})
	r.dispatcher = dispatch.New(nil, dispatch.WithWorkers(tuning.Workers), dispatch.WithLogger(logger))

	primaryTwitch := ""
	if len(cfg.TwitchChannels) > 0 {
		primaryTwitch = cfg.TwitchChannels[0]
	}
	timerList, err := store.LoadTimers()
	if err != nil {
		logger.Warn("runtime: timers", zap.Error(err))
	}
	r.timers = timers.NewScheduler(engine, multiOut, domain.PlatformTwitch, primaryTwitch, logger)
	r.timers.Replace(timerList)

	chatters := commands.NewActiveChatters()
	r.router = commands.NewRouter(tuning.Prefix, commands.RouterDeps{
		Custom:    r.custom,
		Aliases:   r.aliases,
		Perms:     r.perms,
		Cooldowns: r.cooldowns,
		Counters:  counterStore,
		Renderer:  engine,
		Spawner:   r.dispatcher,
		Observers: []commands.LineObserver{chatters, r.timers},
		Logger:    logger,
	})

	router := r.router
	router.Register(commands.NewSongRequestCommand(resolver, r.settings, twitchLive, r.responder, eventLogger, logger))
	router.Register(commands.NewCiderRequestCommand(resolver, r.responder, eventLogger))
	router.Register(commands.NewSongCommand(resolver, r.settings, r.responder))
	router.Register(commands.NewSkipCommand(resolver, r.settings, r.responder))
	router.Register(commands.NewManageCustomCommand(r.custom, r.perms, router.NativeNames, logger))
	router.Register(commands.NewAliasCommand(r.aliases))
	router.Register(commands.NewWinnerCommand(chatters, eventLogger, rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))))
	router.Register(commands.NewReloadCommand(r, r.settings))
	if twitchChannel != nil {
		router.Register(commands.NewTitleCommand(twitchChannel, kickStream, logger))
		router.Register(commands.NewGameCommand(twitchChannel, kickStream, r.games, logger))
		router.Register(commands.NewClipCommand(twitchChannel, logger))
	}
	if dropped := r.custom.SetReservedChecker(router.IsReserved); len(dropped) > 0 {
		r.logger.Warn("runtime: custom commands skipped, names reserved by natives", zap.Strings("triggers", dropped))
	}
	r.syncPermissions()

	interactor := handle_message.NewInteractor(multiOut, router, r.bus, r.platform.ChannelID)
	r.dispatcher.SetHandler(interactor.Handle)

	if cfg.TwitchChatEnabled() {
		adapter := twitchadapter.NewAdapter(twitchadapter.Config{
			Username:          cfg.TwitchUsername,
			OAuthToken:        cfg.TwitchToken,
			Channels:          cfg.TwitchChannels,
			UserNoticeHandler: eventLogger.HandleTwitchUserNotice,
			Logger:            logger,
		})
		adapter.SetHandler(r.dispatcher.Submit)
		r.platform.Add(domain.PlatformTwitch, adapter, primaryTwitch)
	} else {
		logger.Info("runtime: twitch chat disabled (TWITCH_BOT_USERNAME / TWITCH_BOT_ACCESS_TOKEN)")
	}
	if cfg.KickEnabled() {
		adapter := kickadapter.NewAdapter(kickadapter.Config{
			AccessToken:       cfg.KickToken,
			BroadcasterUserID: cfg.KickBroadcasterUserID,
			ChatroomID:        cfg.KickChatroomID,
			EventHandler:      eventLogger.HandleKickMessage,
			Logger:            logger,
		})
		adapter.SetHandler(r.dispatcher.Submit)
		r.platform.Add(domain.PlatformKick, adapter, strconv.Itoa(cfg.KickChatroomID))
	}

	if r.twitchAPI != nil {
		r.wireRedemptions(resolver, multiOut, primaryTwitch, twitchLive, eventLogger)
	}

	r.server = ws.NewServer(ws.Config{
		Addr:     cfg.HTTPAddr,
		Feed:     r.bus,
		Commands: commands.NewService(r.custom, r.aliases, r.perms),
		Health:   multiOut,
		Logger:   logger,
	})

	return r, nil
}

func (r *Runtime) wireRedemptions(resolver *music.Resolver, out domain.OutgoingMessagePort, channel string, live redemptions.LiveChecker, recorder redemptions.Recorder) {
	r.rewards = redemptions.NewRewardSync(r.twitchAPI, r.logger)
	r.settings.OnChange(func(old, next domain.Settings) {
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.Tuning.Helix)
		defer cancel()
		if err := r.rewards.OnSettingsChange(ctx, old, next); err != nil {
			r.logger.Warn("runtime: reward sync", zap.Error(err))
		}
	})

	handler := redemptions.NewHandler(redemptions.Deps{
		Resolver:  resolver,
		Settings:  r.settings,
		Live:      live,
		Rewards:   r.twitchAPI,
		Announcer: commands.NewChannelAnnouncer(r.responder, out, domain.PlatformTwitch, channel),
		Recorder:  recorder,
		Logger:    r.logger,
	})

	r.eventsub = eventsub.NewClient(r.twitchAPI,
		eventsub.WithURL(r.cfg.Tuning.EventSubURL),
		eventsub.WithLogger(r.logger))
	r.eventsub.Subscribe(eventsub.Subscription{
		Type:          eventsub.TypeRedemptionAdd,
		Version:       "1",
		BroadcasterID: r.twitchAPI.BroadcasterID(),
	}, eventsub.RedemptionHandler(func(ctx context.Context, red domain.Redemption) {
		r.dispatcher.Go(ctx, "redemption", func(ctx context.Context) {
			handler.Handle(ctx, red)
		})
	}))
}

// Run connects everything and blocks until ctx is cancelled, then drains the
// dispatcher and closes storage.
func (r *Runtime) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return r.platform.Run(gctx) })
	g.Go(func() error {
		if err := r.store.Watch(gctx, r.cfg.Tuning.ConfigDebounce); err != nil {
			r.logger.Warn("runtime: config watch disabled", zap.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		r.watchConfig(gctx)
		return nil
	})
	g.Go(func() error { return ignoreCanceled(r.timers.Run(gctx)) })
	g.Go(func() error {
		r.pollStatus(gctx)
		return nil
	})
	g.Go(func() error {
		if err := r.server.Start(gctx); err != nil {
			r.logger.Error("runtime: http server", zap.Error(err))
			r.bus.PublishError("http", err)
		}
		return nil
	})

	if r.rewards != nil {
		g.Go(func() error {
			ensureCtx, cancel := context.WithTimeout(gctx, r.cfg.Tuning.Helix)
			defer cancel()
			if err := r.rewards.Ensure(ensureCtx, r.settings.Get()); err != nil {
				r.logger.Warn("runtime: reward setup", zap.Error(err))
			}
			return nil
		})
	}
	if r.eventsub != nil {
		g.Go(func() error {
			err := r.eventsub.Run(gctx)
			if errors.Is(err, eventsub.ErrGaveUp) {
				r.logger.Error("runtime: eventsub stopped, redemptions disabled", zap.Error(err))
				r.bus.PublishError("eventsub", err)
				return nil
			}
			return ignoreCanceled(err)
		})
	}

	r.logger.Info("runtime: bot running", zap.String("prefix", r.cfg.Tuning.Prefix))
	err := ignoreCanceled(g.Wait())

	if drainErr := r.dispatcher.Drain(r.cfg.Tuning.DrainGrace); drainErr != nil {
		r.logger.Warn("runtime: drain", zap.Error(drainErr))
	}
	r.bus.Close()
	if closeErr := r.db.Close(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	r.logger.Info("runtime: bot apagado")
	return err
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// pollStatus publishes the live status for the overlay feed.
func (r *Runtime) pollStatus(ctx context.Context) {
	if !r.status.Configured(domain.PlatformTwitch) {
		return
	}
	interval := r.cfg.Tuning.StatusTTL
	if interval <= 0 {
		interval = statususecase.DefaultTTL
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		for _, s := range r.status.Snapshot(ctx) {
			r.bus.PublishStatus(s)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *Runtime) importLegacyCounters(ctx context.Context) {
	legacy, err := r.store.LoadLegacyCounts()
	if err != nil {
		r.logger.Warn("runtime: legacy counts", zap.Error(err))
		return
	}
	n, err := r.db.ImportCounters(ctx, legacy)
	if err != nil {
		r.logger.Warn("runtime: import counters", zap.Error(err))
		return
	}
	if n > 0 {
		r.logger.Info("runtime: imported legacy counters", zap.Int("count", n))
	}
}
