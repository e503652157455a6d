package respond_test

import (
	"testing"

	"laxenta/internal/respond"
	"laxenta/internal/respond/respondtest"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func interaction() *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{ID: "I1"}}
}

func TestEphemeral(t *testing.T) {
	s := &respondtest.Session{}
	require.NoError(t, respond.Ephemeral(s, interaction(), "nope"))

	resp := s.Last()
	require.NotNil(t, resp)
	assert.Equal(t, discordgo.InteractionResponseChannelMessageWithSource, resp.Type)
	assert.Equal(t, "nope", resp.Data.Content)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, resp.Data.Flags)
}

func TestUpdate_NilComponentsStripControls(t *testing.T) {
	s := &respondtest.Session{}
	require.NoError(t, respond.Update(s, interaction(), "done", nil, nil))

	resp := s.Last()
	assert.Equal(t, discordgo.InteractionResponseUpdateMessage, resp.Type)
	assert.NotNil(t, resp.Data.Components)
	assert.Empty(t, resp.Data.Components)
	assert.Empty(t, resp.Data.Embeds)
}

func TestMessage_CarriesControls(t *testing.T) {
	s := &respondtest.Session{}
	row := discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.Button{CustomID: "confirm:1", Label: "Confirm"},
		discordgo.Button{CustomID: "cancel:1", Label: "Cancel"},
	}}
	embed := &discordgo.MessageEmbed{Title: "Ban?", Color: respond.EmbedColor}
	require.NoError(t, respond.Message(s, interaction(), embed, []discordgo.MessageComponent{row}))

	assert.Equal(t, []string{"confirm:1", "cancel:1"}, respondtest.CustomIDs(s.Last()))
}

func TestFollowupEphemeral(t *testing.T) {
	s := &respondtest.Session{}
	require.NoError(t, respond.FollowupEphemeral(s, interaction(), "later"))
	require.Len(t, s.Followups, 1)
	assert.Equal(t, "later", s.Followups[0].Content)

	s.Fail = true
	assert.ErrorIs(t, respond.DeferUpdate(s, interaction()), respondtest.ErrInjected)
}
