package router

import (
	"context"

	"github.com/ignite/alertops/internal/config"
)

// GroupLookup resolves the server groups a host belongs to. Implemented by
// the reference repository.
type GroupLookup interface {
	GroupsFor(ctx context.Context, computerName string) ([]string, error)
}

// ChannelResolver picks the chat webhook for a team, falling back to the
// legacy infrastructure-based lookup and finally to the General channel.
type ChannelResolver struct {
	cfg      config.TeamsConfig
	groups   GroupLookup
	strategy string
}

// NewChannelResolver builds a resolver over the configured webhook map.
// strategy selects among multiple server groups: "first" (first exact
// match wins) or "general" (always fall back to General).
func NewChannelResolver(cfg config.TeamsConfig, groups GroupLookup, strategy string) *ChannelResolver {
	if strategy == "" {
		strategy = "first"
	}
	return &ChannelResolver{cfg: cfg, groups: groups, strategy: strategy}
}

// WebhookFor returns the webhook URL and channel name for a team. When the
// team has no configured channel, the resource's server group is tried;
// the final fallback is the General channel.
func (r *ChannelResolver) WebhookFor(ctx context.Context, team, resourceMachine string) (url, channel string) {
	if team != "" && team != GeneralTeam {
		if u, ok := r.cfg.Webhooks[config.WebhookKey(team)]; ok && u != "" {
			return u, team
		}
	}

	// Legacy machine-based lookup through the server inventory.
	if r.strategy == "first" && resourceMachine != "" && r.groups != nil {
		if groups, err := r.groups.GroupsFor(ctx, resourceMachine); err == nil {
			for _, g := range groups {
				if u, ok := r.cfg.Webhooks[config.WebhookKey(g)]; ok && u != "" {
					return u, g
				}
			}
		}
	}

	return r.cfg.GeneralWebhook, GeneralTeam
}
