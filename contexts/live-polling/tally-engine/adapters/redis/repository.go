package redisadapter

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"pollcast/contexts/live-polling/tally-engine/domain/entities"
	domainerrors "pollcast/contexts/live-polling/tally-engine/domain/errors"
	"pollcast/contexts/live-polling/tally-engine/ports"
)

// recordVoteScript claims the voter field and bumps the counter atomically.
// KEYS[1] counts hash, KEYS[2] voters hash, ARGV[1] identity, ARGV[2] option,
// ARGV[3] voted-at unix millis.
const recordVoteScript = `
if redis.call('HSETNX', KEYS[2], ARGV[1], ARGV[2] .. '|' .. ARGV[3]) == 0 then
  return 0
end
redis.call('HINCRBY', KEYS[1], ARGV[2], 1)
return 1
`

const defaultKeyPrefix = "pollcast"

// Repository keeps the tally in two hashes. Identity keys are already escaped
// to [A-Za-z0-9_-%] so they are used as hash fields verbatim.
type Repository struct {
	client Client
	prefix string
	logger *slog.Logger

	shaMu sync.Mutex
	sha   string
}

func NewRepository(client Client, prefix string, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Repository{client: client, prefix: prefix, logger: logger}
}

func (r *Repository) countsKey() string {
	return r.prefix + ":tally:counts"
}

func (r *Repository) votersKey() string {
	return r.prefix + ":tally:voters"
}

func (r *Repository) LoadTally(ctx context.Context) (entities.Tally, error) {
	tally := entities.NewTally()

	counts, err := r.client.HGetAll(ctx, r.countsKey())
	if err != nil {
		return entities.Tally{}, r.logError("tally_redis_load_counts_failed", err)
	}
	for field, raw := range counts {
		count, err := strconv.Atoi(raw)
		if err != nil {
			return entities.Tally{}, r.logError("tally_redis_bad_count", err, "option", field)
		}
		tally.Counts[entities.Option(field)] = count
		tally.Total += count
	}

	voters, err := r.client.HGetAll(ctx, r.votersKey())
	if err != nil {
		return entities.Tally{}, r.logError("tally_redis_load_voters_failed", err)
	}
	for identity, value := range voters {
		option, _, _ := strings.Cut(value, "|")
		tally.Voters[identity] = entities.Option(option)
	}
	return tally, nil
}

func (r *Repository) RecordVote(ctx context.Context, identity string, option entities.Option, votedAt time.Time) error {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return domainerrors.ErrInvalidIdentity
	}
	if !option.Valid() {
		return domainerrors.ErrUnknownOption
	}
	keys := []string{r.countsKey(), r.votersKey()}
	result, err := r.eval(ctx, keys, identity, string(option), votedAt.UTC().UnixMilli())
	if err != nil {
		return r.logError("tally_redis_record_vote_failed", err,
			"identity", identity,
			"option", string(option),
		)
	}
	applied, ok := toInt64(result)
	if !ok {
		return r.logError("tally_redis_unexpected_reply", fmt.Errorf("unexpected script reply %v", result))
	}
	if applied == 0 {
		return domainerrors.ErrAlreadyVoted
	}
	return nil
}

func (r *Repository) ResetTally(ctx context.Context) error {
	if _, err := r.client.Del(ctx, r.countsKey(), r.votersKey()); err != nil {
		return r.logError("tally_redis_reset_failed", err)
	}
	return nil
}

func (r *Repository) eval(ctx context.Context, keys []string, args ...any) (any, error) {
	sha := r.loadScript(ctx)
	if sha == "" {
		return r.client.Eval(ctx, recordVoteScript, keys, args...)
	}
	res, err := r.client.EvalSha(ctx, sha, keys, args...)
	if err != nil && isNoScript(err) {
		r.resetScript()
		return r.client.Eval(ctx, recordVoteScript, keys, args...)
	}
	return res, err
}

func (r *Repository) loadScript(ctx context.Context) string {
	r.shaMu.Lock()
	defer r.shaMu.Unlock()
	if r.sha != "" {
		return r.sha
	}
	sha, err := r.client.ScriptLoad(ctx, recordVoteScript)
	if err != nil {
		return ""
	}
	r.sha = sha
	return sha
}

func (r *Repository) resetScript() {
	r.shaMu.Lock()
	r.sha = ""
	r.shaMu.Unlock()
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "live-polling/tally-engine",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("tally redis operation failed", fields...)
	return err
}

// isNoScript matches the server reply for an evicted script cache. Only that
// error is retried with EVAL; anything else may have run the script already.
func isNoScript(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "NOSCRIPT")
}

func toInt64(val any) (int64, bool) {
	switch v := val.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

var _ ports.TallyRepository = (*Repository)(nil)
