package decision

import (
	"context"
	"encoding/json"
	"log"
)

// StatsRequest asks for one guild's decision aggregates. Sent on the
// decision.stats subject via NATS request/reply.
type StatsRequest struct {
	GuildID string `json:"guild_id"`
}

// StatsReply carries the aggregates or a lookup error.
type StatsReply struct {
	Stats *GuildStats `json:"stats,omitempty"`
	Error string      `json:"error,omitempty"`
}

// ServeStats handles one marshalled StatsRequest and returns the
// marshalled reply. The decisions service registers it as the NATS
// request handler; status command surfaces consume the reply.
func (s *Store) ServeStats(ctx context.Context, data []byte) []byte {
	var req StatsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return marshalStatsReply(StatsReply{Error: "bad request: " + err.Error()})
	}
	if req.GuildID == "" {
		return marshalStatsReply(StatsReply{Error: "guild_id is required"})
	}

	stats, err := s.Stats(ctx, req.GuildID)
	if err != nil {
		log.Printf("[decisions] stats lookup guild=%s: %v", req.GuildID, err)
		return marshalStatsReply(StatsReply{Error: "stats lookup failed"})
	}
	return marshalStatsReply(StatsReply{Stats: &stats})
}

func marshalStatsReply(r StatsReply) []byte {
	data, err := json.Marshal(r)
	if err != nil {
		return []byte(`{"error":"internal"}`)
	}
	return data
}
