package httpclient

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gitlab.com/timkado/api/daisi-feed-client/internal/domain"
)

// validator is implemented by payloads that must reject incomplete bodies.
type validator interface {
	validate() error
}

// decodeEnvelope decodes body into out. Responses arrive either bare or
// wrapped as {"data": ...}; a data field holding an object or array wins.
// Any shape mismatch is reported as ErrMalformedEnvelope.
func decodeEnvelope(body []byte, out any) error {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return fmt.Errorf("%w: empty body", domain.ErrMalformedEnvelope)
	}
	if body[0] == '{' {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(body, &probe); err == nil {
			if data, ok := probe["data"]; ok {
				data = bytes.TrimSpace(data)
				if len(data) > 0 && (data[0] == '{' || data[0] == '[') {
					body = data
				}
			}
		}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedEnvelope, err)
	}
	if v, ok := out.(validator); ok {
		if err := v.validate(); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrMalformedEnvelope, err)
		}
	}
	return nil
}

// authPayload is the body of login and register.
type authPayload struct {
	User         *domain.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

func (p *authPayload) validate() error {
	switch {
	case p.AccessToken == "" || p.RefreshToken == "":
		return fmt.Errorf("auth response lacks a full credential pair")
	case p.User == nil:
		return fmt.Errorf("auth response lacks the user")
	}
	return nil
}

func (p *authPayload) result() domain.AuthResult {
	return domain.AuthResult{
		User:        *p.User,
		Credentials: domain.CredentialPair{AccessCredential: p.AccessToken, RefreshCredential: p.RefreshToken},
	}
}

// refreshPayload is the body of /auth/refresh. Both credentials are required;
// a body carrying only one of them is rejected rather than half-applied.
type refreshPayload struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (p *refreshPayload) validate() error {
	if p.AccessToken == "" || p.RefreshToken == "" {
		return fmt.Errorf("refresh response lacks a full credential pair")
	}
	return nil
}

// pagePayload is a Spring Data page. The flat number/last fields are the
// canonical cursor; the nested pageable object is ignored.
type pagePayload[T any] struct {
	Content       *[]T  `json:"content"`
	Number        int   `json:"number"`
	Size          int   `json:"size"`
	TotalPages    int   `json:"totalPages"`
	TotalElements int64 `json:"totalElements"`
	Last          bool  `json:"last"`
}

func (p *pagePayload[T]) validate() error {
	if p.Content == nil {
		return fmt.Errorf("page response lacks content")
	}
	return nil
}

func (p *pagePayload[T]) page() domain.Page[T] {
	page := domain.Page[T]{
		Items:         *p.Content,
		Cursor:        p.Number,
		IsLastPage:    p.Last,
		TotalPages:    p.TotalPages,
		TotalElements: p.TotalElements,
	}
	if !p.Last {
		page.NextCursor = p.Number + 1
	}
	return page
}
