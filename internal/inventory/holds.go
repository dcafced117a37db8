package inventory

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// HoldStore handles atomic Redis operations for advisory seat holds. Holds
// are a UX courtesy during seat selection; the database conditional update
// in ReserveSeats remains the only authority on who gets a seat.
type HoldStore struct {
	redis      *redis.Client
	holdSHA    string
	releaseSHA string
}

func NewHoldStore(redisClient *redis.Client) *HoldStore {
	return &HoldStore{
		redis:      redisClient,
		holdSHA:    scriptSHA(luaAtomicSeatHold),
		releaseSHA: scriptSHA(luaAtomicSeatRelease),
	}
}

func scriptSHA(script string) string {
	sum := sha1.Sum([]byte(script))
	return hex.EncodeToString(sum[:])
}

// Lua script for atomic seat holding - prevents race conditions between
// concurrent browsing sessions
const luaAtomicSeatHold = `
-- KEYS[1] = hold_id
-- ARGV[1] = session_id
-- ARGV[2] = event_id
-- ARGV[3] = ttl_seconds
-- ARGV[4..N] = seat_ids

local hold_id = KEYS[1]
local session_id = ARGV[1]
local event_id = ARGV[2]
local ttl = tonumber(ARGV[3])

-- Check if all seats are free of holds
for i = 4, #ARGV do
    local seat_id = ARGV[i]
    local seat_hold_key = "seat_hold:" .. seat_id

    if redis.call("EXISTS", seat_hold_key) == 1 then
        return {0, seat_id}
    end
end

-- All seats free, hold them atomically
local hold_key = "hold:" .. hold_id
local hold_seats_key = "hold_seats:" .. hold_id
local session_holds_key = "session_holds:" .. session_id
local created_at = redis.call("TIME")[1]

redis.call("HMSET", hold_key,
    "session_id", session_id,
    "event_id", event_id,
    "seat_count", #ARGV - 3,
    "created_at", created_at
)
redis.call("EXPIRE", hold_key, ttl)

for i = 4, #ARGV do
    local seat_id = ARGV[i]
    local seat_hold_key = "seat_hold:" .. seat_id
    local hold_value = session_id .. ":" .. hold_id

    redis.call("SETEX", seat_hold_key, ttl, hold_value)
    redis.call("SADD", hold_seats_key, seat_id)
end

redis.call("EXPIRE", hold_seats_key, ttl)

redis.call("SADD", session_holds_key, hold_id)
redis.call("EXPIRE", session_holds_key, ttl)

return {1, "success"}
`

// Lua script for atomic hold release
const luaAtomicSeatRelease = `
-- KEYS[1] = hold_id
local hold_id = KEYS[1]

local hold_key = "hold:" .. hold_id
local hold_seats_key = "hold_seats:" .. hold_id

local hold_data = redis.call("HGETALL", hold_key)
if #hold_data == 0 then
    return {0, "hold_not_found"}
end

local session_id = nil
for i = 1, #hold_data, 2 do
    if hold_data[i] == "session_id" then
        session_id = hold_data[i + 1]
        break
    end
end

if not session_id then
    return {0, "invalid_hold_data"}
end

local seat_ids = redis.call("SMEMBERS", hold_seats_key)

for i = 1, #seat_ids do
    local seat_hold_key = "seat_hold:" .. seat_ids[i]
    redis.call("DEL", seat_hold_key)
end

local session_holds_key = "session_holds:" .. session_id
redis.call("SREM", session_holds_key, hold_id)

redis.call("DEL", hold_key)
redis.call("DEL", hold_seats_key)

return {1, #seat_ids}
`

// HoldSeats atomically holds multiple seats for a browsing session
func (h *HoldStore) HoldSeats(ctx context.Context, seatIDs []uuid.UUID, sessionID, holdID, eventID string, ttl time.Duration) error {
	if h.redis == nil {
		return fmt.Errorf("redis client not available")
	}

	keys := []string{holdID}
	args := []interface{}{
		sessionID,
		eventID,
		strconv.Itoa(int(ttl.Seconds())),
	}
	for _, seatID := range seatIDs {
		args = append(args, seatID.String())
	}

	result, err := h.redis.EvalSha(ctx, h.holdSHA, keys, args...).Result()
	if err != nil {
		// Script not loaded yet, fall back to Eval
		result, err = h.redis.Eval(ctx, luaAtomicSeatHold, keys, args...).Result()
		if err != nil {
			return fmt.Errorf("failed to execute atomic seat hold: %w", err)
		}
	}

	resultArray, ok := result.([]interface{})
	if !ok || len(resultArray) != 2 {
		return fmt.Errorf("unexpected result format from Lua script")
	}

	success, ok := resultArray[0].(int64)
	if !ok {
		return fmt.Errorf("invalid success flag in Lua script result")
	}

	if success == 0 {
		conflictSeat, ok := resultArray[1].(string)
		if ok {
			return fmt.Errorf("seat already held: %s", conflictSeat)
		}
		return fmt.Errorf("failed to hold seats")
	}

	return nil
}

// ReleaseHold atomically releases a hold and returns how many seats it freed
func (h *HoldStore) ReleaseHold(ctx context.Context, holdID string) (int, error) {
	if h.redis == nil {
		return 0, fmt.Errorf("redis client not available")
	}

	result, err := h.redis.EvalSha(ctx, h.releaseSHA, []string{holdID}).Result()
	if err != nil {
		result, err = h.redis.Eval(ctx, luaAtomicSeatRelease, []string{holdID}).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to execute atomic seat release: %w", err)
		}
	}

	resultArray, ok := result.([]interface{})
	if !ok || len(resultArray) != 2 {
		return 0, fmt.Errorf("unexpected result format from Lua script")
	}

	success, ok := resultArray[0].(int64)
	if !ok {
		return 0, fmt.Errorf("invalid success flag in Lua script result")
	}

	if success == 0 {
		reason, ok := resultArray[1].(string)
		if ok {
			return 0, fmt.Errorf("failed to release hold: %s", reason)
		}
		return 0, fmt.Errorf("failed to release hold")
	}

	releasedCount, ok := resultArray[1].(int64)
	if !ok {
		return 0, fmt.Errorf("invalid released count in Lua script result")
	}

	return int(releasedCount), nil
}

// HeldSeatIDs returns the seat ids currently carrying a hold, out of the
// given candidates. Used to overlay HELD on the seat map.
func (h *HoldStore) HeldSeatIDs(ctx context.Context, seatIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	held := make(map[uuid.UUID]bool)
	if h.redis == nil || len(seatIDs) == 0 {
		return held, nil
	}

	pipe := h.redis.Pipeline()
	cmds := make([]*redis.IntCmd, len(seatIDs))
	for i, id := range seatIDs {
		cmds[i] = pipe.Exists(ctx, "seat_hold:"+id.String())
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to check seat holds: %w", err)
	}
	for i, cmd := range cmds {
		if cmd.Val() == 1 {
			held[seatIDs[i]] = true
		}
	}
	return held, nil
}

// PreloadScripts loads the Lua scripts into Redis at startup
func (h *HoldStore) PreloadScripts(ctx context.Context) error {
	if h.redis == nil {
		return fmt.Errorf("redis client not available")
	}

	if _, err := h.redis.ScriptLoad(ctx, luaAtomicSeatHold).Result(); err != nil {
		return fmt.Errorf("failed to load seat hold script: %w", err)
	}
	if _, err := h.redis.ScriptLoad(ctx, luaAtomicSeatRelease).Result(); err != nil {
		return fmt.Errorf("failed to load seat release script: %w", err)
	}
	return nil
}
