// Package respondtest records interaction responses in place of a gateway
// session.
package respondtest

import (
	"errors"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// ErrInjected is returned by a Session whose Fail field is set.
var ErrInjected = errors.New("respondtest: injected failure")

// Session satisfies respond.Session and keeps everything sent through it.
type Session struct {
	mu        sync.Mutex
	Responses []*discordgo.InteractionResponse
	Followups []*discordgo.WebhookParams
	Fail      bool
}

func (s *Session) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail {
		return ErrInjected
	}
	s.Responses = append(s.Responses, resp)
	return nil
}

func (s *Session) FollowupMessageCreate(_ *discordgo.Interaction, _ bool, data *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail {
		return nil, ErrInjected
	}
	s.Followups = append(s.Followups, data)
	return &discordgo.Message{Content: data.Content}, nil
}

// Last returns the most recent response, or nil.
func (s *Session) Last() *discordgo.InteractionResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Responses) == 0 {
		return nil
	}
	return s.Responses[len(s.Responses)-1]
}

// Count returns the number of responses recorded so far.
func (s *Session) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Responses)
}

// CustomIDs lists the custom IDs of every button in resp, row by row.
func CustomIDs(resp *discordgo.InteractionResponse) []string {
	if resp == nil || resp.Data == nil {
		return nil
	}
	var ids []string
	for _, c := range resp.Data.Components {
		row, ok := c.(discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			if b, ok := inner.(discordgo.Button); ok && b.CustomID != "" {
				ids = append(ids, b.CustomID)
			}
		}
	}
	return ids
}
