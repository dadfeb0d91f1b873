package tools

import (
	"context"
	"errors"

	"github.com/briefops/briefops/internal/archive"
	"github.com/briefops/briefops/internal/orchestrator"
)

// Archive builds the message-history capabilities over the local
// message archive.
func Archive(store *archive.Store) []*orchestrator.Capability {
	return []*orchestrator.Capability{
		{
			Name:        "get_recent_messages",
			Description: "Get the most recent messages from a channel, newest first. Use to catch up on what was discussed.",
			Params: []orchestrator.Param{
				{Name: "channel_id", Type: orchestrator.TypeString, Description: "Channel id"},
				{Name: "limit", Type: orchestrator.TypeInteger, Description: "Maximum messages to return", Optional: true, Default: 10},
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				channelID, err := stringArg(args, "channel_id")
				if err != nil {
					return nil, err
				}
				limit, err := optIntArg(args, "limit", 10)
				if err != nil {
					return nil, err
				}
				return emptyMessages(store.RecentByChannel(channelID, int(limit)))
			},
		},
		{
			Name:        "search_channel_messages",
			Description: "Search a channel's message history for text, case-insensitively, newest first. Use to find earlier discussion of a topic.",
			Params: []orchestrator.Param{
				{Name: "channel_id", Type: orchestrator.TypeString, Description: "Channel id"},
				{Name: "query", Type: orchestrator.TypeString, Description: "Text to search for"},
				{Name: "limit", Type: orchestrator.TypeInteger, Description: "Maximum messages to return", Optional: true, Default: 20},
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				channelID, err := stringArg(args, "channel_id")
				if err != nil {
					return nil, err
				}
				query, err := stringArg(args, "query")
				if err != nil {
					return nil, err
				}
				limit, err := optIntArg(args, "limit", 20)
				if err != nil {
					return nil, err
				}
				return emptyMessages(store.Search(channelID, query, int(limit)))
			},
		},
		{
			Name:        "get_latest_human_message",
			Description: "Get the most recent message written by a person (not a bot) in a channel.",
			Params: []orchestrator.Param{
				{Name: "channel_id", Type: orchestrator.TypeString, Description: "Channel id"},
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				channelID, err := stringArg(args, "channel_id")
				if err != nil {
					return nil, err
				}
				msg, err := store.LatestHumanMessage(channelID)
				if errors.Is(err, archive.ErrNoMessages) {
					return map[string]any{}, nil
				}
				if err != nil {
					return nil, err
				}
				return msg, nil
			},
		},
		{
			Name:        "get_thread_messages",
			Description: "Get the messages of one thread in posting order, including the opener.",
			Params: []orchestrator.Param{
				{Name: "channel_id", Type: orchestrator.TypeString, Description: "Channel id"},
				{Name: "thread_ts", Type: orchestrator.TypeString, Description: "Timestamp of the thread opener"},
				{Name: "limit", Type: orchestrator.TypeInteger, Description: "Maximum messages to return", Optional: true, Default: 50},
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				channelID, err := stringArg(args, "channel_id")
				if err != nil {
					return nil, err
				}
				threadTS, err := stringArg(args, "thread_ts")
				if err != nil {
					return nil, err
				}
				limit, err := optIntArg(args, "limit", 50)
				if err != nil {
					return nil, err
				}
				return emptyMessages(store.ThreadMessages(channelID, threadTS, int(limit)))
			},
		},
	}
}

func emptyMessages(msgs []archive.Message, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []archive.Message{}
	}
	return msgs, nil
}
