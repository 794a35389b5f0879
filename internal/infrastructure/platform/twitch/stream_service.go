package twitchinfra

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/nicklaw5/helix/v2"

	"djBot/internal/domain"
	"djBot/internal/infrastructure/eventsub"
)

type Config struct {
	ClientID      string
	AccessToken   string
	BroadcasterID string
	Timeout       time.Duration

	// BroadcasterLogin se usa para resolver el ID cuando no viene configurado.
	BroadcasterLogin string

	// APIBaseURL apunta a otro servidor Helix (tests).
	APIBaseURL string
}

// TwitchStreamService wraps the Helix calls the bot makes on behalf of the
// broadcaster account.
type TwitchStreamService struct {
	client        *helix.Client
	mu            sync.RWMutex
	broadcasterID string
}

var (
	_ domain.TwitchChannelService = (*TwitchStreamService)(nil)
	_ domain.StreamStatusService  = (*TwitchStreamService)(nil)
	_ domain.RewardService        = (*TwitchStreamService)(nil)
	_ eventsub.Subscriber         = (*TwitchStreamService)(nil)
)

func NewStreamService(cfg Config) (*TwitchStreamService, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	client, err := helix.NewClient(&helix.Options{
		ClientID:        cfg.ClientID,
		UserAccessToken: cfg.AccessToken,
		HTTPClient:      &http.Client{Timeout: cfg.Timeout},
		APIBaseURL:      cfg.APIBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("helix: NewClient: %w", err)
	}

	s := &TwitchStreamService{client: client, broadcasterID: strings.TrimSpace(cfg.BroadcasterID)}
	if s.broadcasterID == "" {
		id, err := s.lookupUserID(cfg.BroadcasterLogin)
		if err != nil {
			return nil, err
		}
		s.broadcasterID = id
	}
	return s, nil
}

func (s *TwitchStreamService) BroadcasterID() string { return s.broadcasterID }

func (s *TwitchStreamService) lookupUserID(login string) (string, error) {
	login = strings.TrimPrefix(strings.TrimSpace(login), "#")
	if login == "" {
		return "", errors.New("helix: broadcaster id and login are both empty")
	}
	resp, err := s.getClient().GetUsers(&helix.UsersParams{Logins: []string{login}})
	if err != nil {
		return "", fmt.Errorf("helix: GetUsers: %w", err)
	}
	if err := statusErr("GetUsers", &resp.ResponseCommon, http.StatusOK); err != nil {
		return "", err
	}
	if len(resp.Data.Users) == 0 {
		return "", fmt.Errorf("usuario de Twitch no encontrado: %s", login)
	}
	return resp.Data.Users[0].ID, nil
}

func (s *TwitchStreamService) ChannelInfo(ctx context.Context) (domain.ChannelInfo, error) {
	resp, err := s.getClient().GetChannelInformation(&helix.GetChannelInformationParams{
		BroadcasterIDs: []string{s.broadcasterID},
	})
	if err != nil {
		return domain.ChannelInfo{}, fmt.Errorf("helix: GetChannelInformation: %w", err)
	}
	if err := statusErr("GetChannelInformation", &resp.ResponseCommon, http.StatusOK); err != nil {
		return domain.ChannelInfo{}, err
	}
	if len(resp.Data.Channels) == 0 {
		return domain.ChannelInfo{}, errors.New("helix: channel not found")
	}
	ch := resp.Data.Channels[0]
	return domain.ChannelInfo{
		BroadcasterID: ch.BroadcasterID,
		Title:         ch.Title,
		GameName:      ch.GameName,
	}, nil
}

func (s *TwitchStreamService) SetTitle(ctx context.Context, title string) error {
	resp, err := s.getClient().EditChannelInformation(&helix.EditChannelInformationParams{
		BroadcasterID: s.broadcasterID,
		Title:         title,
	})
	if err != nil {
		return fmt.Errorf("helix: EditChannelInformation: %w", err)
	}
	// Modify Channel Information devuelve 204 No Content en éxito.
	return statusErr("EditChannelInformation", &resp.ResponseCommon, http.StatusNoContent, http.StatusOK)
}

func (s *TwitchStreamService) SetCategory(ctx context.Context, categoryID string) error {
	if strings.TrimSpace(categoryID) == "" {
		return errors.New("empty category id")
	}
	resp, err := s.getClient().EditChannelInformation(&helix.EditChannelInformationParams{
		BroadcasterID: s.broadcasterID,
		GameID:        categoryID,
	})
	if err != nil {
		return fmt.Errorf("helix: EditChannelInformation (category): %w", err)
	}
	return statusErr("EditChannelInformation (category)", &resp.ResponseCommon, http.StatusNoContent, http.StatusOK)
}

func (s *TwitchStreamService) SearchCategories(ctx context.Context, query string) ([]domain.CategoryOption, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("empty query")
	}
	resp, err := s.getClient().SearchCategories(&helix.SearchCategoriesParams{
		Query: query,
		First: 25,
	})
	if err != nil {
		return nil, fmt.Errorf("helix: SearchCategories: %w", err)
	}
	if err := statusErr("SearchCategories", &resp.ResponseCommon, http.StatusOK); err != nil {
		return nil, err
	}

	options := make([]domain.CategoryOption, 0, len(resp.Data.Categories))
	for _, cat := range resp.Data.Categories {
		options = append(options, domain.CategoryOption{ID: cat.ID, Name: cat.Name})
	}
	return options, nil
}

func (s *TwitchStreamService) CreateClip(ctx context.Context) (string, error) {
	resp, err := s.getClient().CreateClip(&helix.CreateClipParams{BroadcasterID: s.broadcasterID})
	if err != nil {
		return "", fmt.Errorf("helix: CreateClip: %w", err)
	}
	if err := statusErr("CreateClip", &resp.ResponseCommon, http.StatusAccepted, http.StatusOK); err != nil {
		return "", err
	}
	if len(resp.Data.ClipEditURLs) == 0 {
		return "", errors.New("helix: CreateClip returned no clip")
	}
	return resp.Data.ClipEditURLs[0].ID, nil
}

// Status reports whether the broadcaster is live. An empty stream list means
// offline.
func (s *TwitchStreamService) Status(ctx context.Context) (domain.StreamStatus, error) {
	status := domain.StreamStatus{Platform: domain.PlatformTwitch}
	resp, err := s.getClient().GetStreams(&helix.StreamsParams{UserIDs: []string{s.broadcasterID}})
	if err != nil {
		return status, fmt.Errorf("helix: GetStreams: %w", err)
	}
	if err := statusErr("GetStreams", &resp.ResponseCommon, http.StatusOK); err != nil {
		return status, err
	}
	if len(resp.Data.Streams) == 0 {
		return status, nil
	}
	st := resp.Data.Streams[0]
	status.IsLive = true
	status.Title = st.Title
	status.GameTitle = st.GameName
	status.ViewerCount = st.ViewerCount
	status.StartedAt = st.StartedAt
	return status, nil
}

func (s *TwitchStreamService) UpdateRedemptionStatus(ctx context.Context, rewardID, redemptionID string, status domain.RedemptionStatus) error {
	resp, err := s.getClient().UpdateChannelCustomRewardsRedemptionStatus(&helix.UpdateChannelCustomRewardsRedemptionStatusParams{
		ID:            redemptionID,
		BroadcasterID: s.broadcasterID,
		RewardID:      rewardID,
		Status:        string(status),
	})
	if err != nil {
		return fmt.Errorf("helix: UpdateRedemptionStatus: %w", err)
	}
	return statusErr("UpdateRedemptionStatus", &resp.ResponseCommon, http.StatusOK)
}

func (s *TwitchStreamService) CreateReward(ctx context.Context, spec domain.RewardSpec) (string, error) {
	resp, err := s.getClient().CreateCustomReward(&helix.ChannelCustomRewardsParams{
		BroadcasterID:       s.broadcasterID,
		Title:               spec.Title,
		Cost:                spec.Cost,
		Prompt:              spec.Prompt,
		IsEnabled:           true,
		IsUserInputRequired: true,
	})
	if err != nil {
		return "", fmt.Errorf("helix: CreateCustomReward: %w", err)
	}
	if err := statusErr("CreateCustomReward", &resp.ResponseCommon, http.StatusOK); err != nil {
		return "", err
	}
	if len(resp.Data.ChannelCustomRewards) == 0 {
		return "", errors.New("helix: CreateCustomReward returned no reward")
	}
	return resp.Data.ChannelCustomRewards[0].ID, nil
}

func (s *TwitchStreamService) SetRewardPaused(ctx context.Context, rewardID string, paused bool) error {
	resp, err := s.getClient().UpdateChannelCustomRewards(&helix.UpdateChannelCustomRewardsParams{
		ID:            rewardID,
		BroadcasterID: s.broadcasterID,
		IsPaused:      paused,
	})
	if err != nil {
		return fmt.Errorf("helix: UpdateCustomReward: %w", err)
	}
	return statusErr("UpdateCustomReward", &resp.ResponseCommon, http.StatusOK)
}

// CreateSubscription registers an EventSub subscription on a websocket
// session. The status code is returned as-is so the caller can tell 202 from
// 409.
func (s *TwitchStreamService) CreateSubscription(ctx context.Context, sessionID string, sub eventsub.Subscription) (int, error) {
	broadcaster := sub.BroadcasterID
	if broadcaster == "" {
		broadcaster = s.broadcasterID
	}
	resp, err := s.getClient().CreateEventSubSubscription(&helix.EventSubSubscription{
		Type:    sub.Type,
		Version: sub.Version,
		Condition: helix.EventSubCondition{
			BroadcasterUserID: broadcaster,
		},
		Transport: helix.EventSubTransport{
			Method:    "websocket",
			SessionID: sessionID,
		},
	})
	if err != nil {
		return 0, fmt.Errorf("helix: CreateEventSubSubscription: %w", err)
	}
	return resp.StatusCode, nil
}

func (s *TwitchStreamService) UpdateAccessToken(token string) {
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client.SetUserAccessToken(token)
}

func (s *TwitchStreamService) getClient() *helix.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

func statusErr(op string, resp *helix.ResponseCommon, ok ...int) error {
	for _, code := range ok {
		if resp.StatusCode == code {
			return nil
		}
	}
	return fmt.Errorf("helix: %s failed (%d: %s) %s", op, resp.StatusCode, resp.Error, resp.ErrorMessage)
}
