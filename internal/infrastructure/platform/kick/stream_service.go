package kickinfra

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	kicksdk "github.com/glichtv/kick-sdk"
	optional "github.com/glichtv/kick-sdk/optional"

	"djBot/internal/domain"
)

// KickStreamService mirrors title and category changes onto the Kick channel.
type KickStreamService struct {
	client *kicksdk.Client
}

var _ domain.KickStreamService = (*KickStreamService)(nil)

func NewStreamService(accessToken string) (*KickStreamService, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, errors.New("kick access token vacío")
	}
	client := kicksdk.NewClient(
		kicksdk.WithAccessTokens(kicksdk.AccessTokens{
			UserAccessToken: accessToken,
		}),
	)
	return &KickStreamService{client: client}, nil
}

func (s *KickStreamService) SetTitle(ctx context.Context, title string) error {
	if strings.TrimSpace(title) == "" {
		return errors.New("título vacío")
	}
	_, err := s.client.Channels().UpdateStream(ctx, kicksdk.UpdateStreamInput{
		StreamTitle: optional.From(title),
	})
	if err != nil {
		return fmt.Errorf("kick: error al actualizar título: %w", err)
	}
	return nil
}

// SetCategory busca la categoría por nombre; gana la coincidencia exacta y si
// no hay, el primer resultado.
func (s *KickStreamService) SetCategory(ctx context.Context, categoryName string) error {
	categoryName = strings.TrimSpace(categoryName)
	if categoryName == "" {
		return errors.New("categoría vacía")
	}
	categories, err := s.search(ctx, categoryName)
	if err != nil {
		return err
	}
	if len(categories) == 0 {
		return fmt.Errorf("kick: no se encontró categoría para %q", categoryName)
	}

	chosen := categories[0]
	for _, c := range categories {
		if strings.EqualFold(c.Name, categoryName) {
			chosen = c
			break
		}
	}

	if _, err := s.client.Channels().UpdateStream(ctx, kicksdk.UpdateStreamInput{
		CategoryID: optional.From(chosen.ID),
	}); err != nil {
		return fmt.Errorf("kick: error actualizando categoría: %w", err)
	}
	return nil
}

func (s *KickStreamService) SearchCategories(ctx context.Context, query string) ([]domain.CategoryOption, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("categoría vacía")
	}
	categories, err := s.search(ctx, query)
	if err != nil {
		return nil, err
	}
	options := make([]domain.CategoryOption, 0, len(categories))
	for _, cat := range categories {
		options = append(options, domain.CategoryOption{ID: strconv.Itoa(cat.ID), Name: cat.Name})
	}
	return options, nil
}

func (s *KickStreamService) search(ctx context.Context, query string) ([]kicksdk.Category, error) {
	resp, err := s.client.Categories().Search(ctx, kicksdk.SearchCategoriesInput{Query: query})
	if err != nil {
		return nil, fmt.Errorf("kick: error buscando categorías: %w", err)
	}
	return resp.Payload, nil
}
