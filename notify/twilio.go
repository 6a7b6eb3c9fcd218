package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioSender sends SMS through the Twilio REST API.
type TwilioSender struct {
	api messageCreator
}

func NewTwilioSender(accountSID, authToken string) (*TwilioSender, error) {
	if accountSID == "" || authToken == "" {
		return nil, ErrMissingCredentials
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSender{api: client.Api}, nil
}

// Send posts msg. The REST client has no context support, so a
// cancelled ctx returns early while the request finishes in the
// background.
func (s *TwilioSender) Send(ctx context.Context, msg Message) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(msg.To)
	params.SetFrom(msg.From)
	params.SetBody(msg.Body)

	type result struct {
		sid string
		err error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := s.api.CreateMessage(params)
		var sid string
		if err == nil && resp != nil && resp.Sid != nil {
			sid = *resp.Sid
		}
		done <- result{sid: sid, err: err}
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("sending SMS to %s: %w", msg.To, ctx.Err())
	case res := <-done:
		if res.err != nil {
			return fmt.Errorf("sending SMS to %s: %w", msg.To, res.err)
		}
		slog.Debug("SMS sent", "to", msg.To, "sid", res.sid)
		return nil
	}
}
