package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/do/v2"
	"github.com/valyala/fasthttp"
)

// WebhookService talks to the chat platform's gateway endpoints. One endpoint
// per collaborator: messages, moderation, voice.
type WebhookService struct {
	client *fasthttp.Client

	botToken string

	messageURL    string
	moderationURL string
	voiceURL      string

	log zerolog.Logger
}

func NewWebhookService(i do.Injector) (*WebhookService, error) {
	botToken := do.MustInvokeNamed[string](i, "bot-token")

	messageURL := do.MustInvokeNamed[string](i, "message-url")
	moderationURL := do.MustInvokeNamed[string](i, "moderation-url")
	voiceURL := do.MustInvokeNamed[string](i, "voice-url")

	log := do.MustInvoke[zerolog.Logger](i)

	result := &WebhookService{
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         10 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: 1 * time.Minute,
		},

		botToken: botToken,

		messageURL:    messageURL,
		moderationURL: moderationURL,
		voiceURL:      voiceURL,

		log: log.With().Str("service", "platform").Logger(),
	}

	return result, nil
}

type publicMessage struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options,omitempty"`
}

type ephemeralMessage struct {
	PlayerID string `json:"player_id"`
	Text     string `json:"text"`
}

type retraction struct {
	ID string `json:"id"`
}

type restriction struct {
	PlayerID string `json:"player_id"`
	Minutes  int    `json:"minutes"`
	Reason   string `json:"reason"`
}

type voiceCue struct {
	PlayerIDs []string `json:"player_ids"`
}

func (s *WebhookService) SendPublic(ctx context.Context, text string, options []string) (MessageHandle, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate message ID: %w", err)
	}

	status, err := s.post(ctx, s.messageURL+"/public", publicMessage{
		ID:      id.String(),
		Text:    text,
		Options: options,
	})
	if err != nil {
		return "", fmt.Errorf("failed to deliver public message: %w", err)
	}

	if status != fasthttp.StatusOK && status != fasthttp.StatusCreated {
		return "", fmt.Errorf("message gateway answered %d", status)
	}

	return MessageHandle(id.String()), nil
}

func (s *WebhookService) SendEphemeral(ctx context.Context, playerID, text string) error {
	status, err := s.post(ctx, s.messageURL+"/ephemeral", ephemeralMessage{
		PlayerID: playerID,
		Text:     text,
	})
	if err != nil {
		return fmt.Errorf("failed to deliver ephemeral message: %w", err)
	}

	if status != fasthttp.StatusOK && status != fasthttp.StatusCreated {
		return fmt.Errorf("message gateway answered %d", status)
	}

	return nil
}

func (s *WebhookService) Retract(ctx context.Context, handle MessageHandle) Status {
	status, err := s.post(ctx, s.messageURL+"/retract", retraction{ID: string(handle)})
	if err != nil || status != fasthttp.StatusOK {
		s.log.Debug().Err(err).Int("status", status).Str("handle", string(handle)).Msg("retraction failed")

		return Failed
	}

	return Applied
}

func (s *WebhookService) Restrict(ctx context.Context, playerID string, minutes int, reason string) (Status, error) {
	status, err := s.post(ctx, s.moderationURL, restriction{
		PlayerID: playerID,
		Minutes:  minutes,
		Reason:   reason,
	})
	if err != nil {
		return Failed, fmt.Errorf("failed to reach moderation gateway: %w", err)
	}

	switch status {
	case fasthttp.StatusOK, fasthttp.StatusNoContent:
		return Applied, nil
	case fasthttp.StatusForbidden:
		return PermissionDenied, nil
	}

	return Failed, fmt.Errorf("moderation gateway answered %d", status)
}

func (s *WebhookService) PlayCueIfReachable(ctx context.Context, playerIDs []string) Status {
	status, err := s.post(ctx, s.voiceURL, voiceCue{PlayerIDs: playerIDs})
	if err != nil {
		s.log.Debug().Err(err).Msg("voice cue failed")

		return Failed
	}

	switch status {
	case fasthttp.StatusOK, fasthttp.StatusNoContent:
		return Applied
	case fasthttp.StatusNotFound:
		return Unavailable
	}

	s.log.Debug().Int("status", status).Msg("voice gateway declined cue")

	return Failed
}

func (s *WebhookService) post(ctx context.Context, url string, payload any) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Authorization", "Bot "+s.botToken)
	req.SetBody(body)

	deadline, ok := ctx.Deadline()
	if ok {
		err = s.client.DoDeadline(req, resp, deadline)
	} else {
		err = s.client.Do(req, resp)
	}

	if err != nil {
		return 0, fmt.Errorf("gateway request failed: %w", err)
	}

	return resp.StatusCode(), nil
}
