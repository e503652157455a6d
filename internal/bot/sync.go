package bot

import (
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"
)

// commandWrites paces create and delete calls below Discord's route limit.
const commandWrites = rate.Limit(40)

// commandAPI is the part of *discordgo.Session that manages application commands.
type commandAPI interface {
	ApplicationCommands(appID, guildID string, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
	ApplicationCommandCreate(appID, guildID string, cmd *discordgo.ApplicationCommand, options ...discordgo.RequestOption) (*discordgo.ApplicationCommand, error)
	ApplicationCommandDelete(appID, guildID, cmdID string, options ...discordgo.RequestOption) error
}

type syncResult struct {
	Created, Deleted, Unchanged int
}

// syncCommands makes the remote command set match local. Commands whose
// definition hash already matches are left alone. lim may be nil.
func syncCommands(ctx context.Context, api commandAPI, lim *rate.Limiter, appID, guildID string, local []*discordgo.ApplicationCommand) (syncResult, error) {
	if lim == nil {
		lim = rate.NewLimiter(rate.Inf, 1)
	}
	var res syncResult
	remote, err := api.ApplicationCommands(appID, guildID)
	if err != nil {
		return res, fmt.Errorf("list commands: %w", err)
	}

	remoteHashes := make(map[string]string, len(remote))
	for _, rc := range remote {
		remoteHashes[rc.Name] = hashCommand(rc)
	}
	wanted := make(map[string]struct{}, len(local))
	for _, lc := range local {
		wanted[lc.Name] = struct{}{}
	}

	for _, rc := range remote {
		if _, ok := wanted[rc.Name]; ok {
			continue
		}
		if err := lim.Wait(ctx); err != nil {
			return res, err
		}
		if err := api.ApplicationCommandDelete(appID, guildID, rc.ID); err != nil {
			return res, fmt.Errorf("delete %s: %w", rc.Name, err)
		}
		res.Deleted++
	}

	for _, lc := range local {
		if remoteHashes[lc.Name] == hashCommand(lc) {
			res.Unchanged++
			continue
		}
		if err := lim.Wait(ctx); err != nil {
			return res, err
		}
		if _, err := api.ApplicationCommandCreate(appID, guildID, lc); err != nil {
			return res, fmt.Errorf("create %s: %w", lc.Name, err)
		}
		res.Created++
	}
	return res, nil
}

// hashCommand fingerprints the user-visible parts of a command definition.
func hashCommand(c *discordgo.ApplicationCommand) string {
	obj := map[string]any{
		"name":        c.Name,
		"description": c.Description,
		"type":        commandType(c.Type),
	}
	if c.DefaultMemberPermissions != nil {
		obj["permissions"] = *c.DefaultMemberPermissions
	}
	if len(c.Options) > 0 {
		obj["options"] = normalizeOptions(c.Options)
	}
	data, _ := json.Marshal(obj)
	return fmt.Sprintf("%x", sha1.Sum(data))
}

func commandType(t discordgo.ApplicationCommandType) discordgo.ApplicationCommandType {
	if t == 0 {
		return discordgo.ChatApplicationCommand
	}
	return t
}

func normalizeOptions(opts []*discordgo.ApplicationCommandOption) []map[string]any {
	out := make([]map[string]any, len(opts))
	for i, o := range opts {
		entry := map[string]any{
			"name":        o.Name,
			"description": o.Description,
			"type":        o.Type,
			"required":    o.Required,
		}
		if len(o.Choices) > 0 {
			choices := make([]map[string]any, len(o.Choices))
			for j, c := range o.Choices {
				choices[j] = map[string]any{"name": c.Name, "value": c.Value}
			}
			entry["choices"] = choices
		}
		if len(o.Options) > 0 {
			entry["options"] = normalizeOptions(o.Options)
		}
		out[i] = entry
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i]["name"].(string) < out[j]["name"].(string)
	})
	return out
}
