package holds

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// AtomicRedisOperations runs the hold lifecycle as Lua scripts so that
// concurrent fans can never hold the same seat.
type AtomicRedisOperations struct {
	redis *redis.Client
}

func NewAtomicRedisOperations(redisClient *redis.Client) *AtomicRedisOperations {
	return &AtomicRedisOperations{redis: redisClient}
}

// Script replies are {status, payload...}
const (
	statusOK       = 1
	statusConflict = 0
	statusNotFound = -1
)

// Hold or extend. An extension keeps the token, drops seats that left the
// selection and claims the new ones.
var luaAtomicSeatHold = redis.NewScript(`
-- KEYS[1] = token
-- ARGV[1] = user_id
-- ARGV[2] = event_id
-- ARGV[3] = ttl_seconds
-- ARGV[4] = "1" to extend an existing hold
-- ARGV[5..N] = seat_ids

local token = KEYS[1]
local user_id = ARGV[1]
local event_id = ARGV[2]
local ttl = tonumber(ARGV[3])
local extend = ARGV[4] == "1"

local hold_key = "hold:" .. token
local hold_seats_key = "hold_seats:" .. token
local owner = user_id .. ":" .. token

if extend then
    local data = redis.call("HMGET", hold_key, "user_id", "event_id")
    if not data[1] or data[1] ~= user_id or data[2] ~= event_id then
        return {-1, "hold_not_found"}
    end
end

local conflicts = {0}
for i = 5, #ARGV do
    local current = redis.call("GET", "seat_hold:" .. event_id .. ":" .. ARGV[i])
    if current and current ~= owner then
        table.insert(conflicts, ARGV[i])
    end
end
if #conflicts > 1 then
    return conflicts
end

local wanted = {}
for i = 5, #ARGV do
    wanted[ARGV[i]] = true
end
if extend then
    local previous = redis.call("SMEMBERS", hold_seats_key)
    for i = 1, #previous do
        if not wanted[previous[i]] then
            redis.call("DEL", "seat_hold:" .. event_id .. ":" .. previous[i])
        end
    end
    redis.call("DEL", hold_seats_key)
end

redis.call("HSET", hold_key,
    "user_id", user_id,
    "event_id", event_id,
    "seat_count", #ARGV - 4
)
redis.call("EXPIRE", hold_key, ttl)

for i = 5, #ARGV do
    redis.call("SET", "seat_hold:" .. event_id .. ":" .. ARGV[i], owner, "EX", ttl)
    redis.call("SADD", hold_seats_key, ARGV[i])
end
redis.call("EXPIRE", hold_seats_key, ttl)

local user_holds_key = "user_holds:" .. user_id
redis.call("SADD", user_holds_key, token)
redis.call("EXPIRE", user_holds_key, ttl)

return {1, #ARGV - 4}
`)

var luaAtomicHoldRefresh = redis.NewScript(`
-- KEYS[1] = token
-- ARGV[1] = user_id
-- ARGV[2] = ttl_seconds
local token = KEYS[1]
local ttl = tonumber(ARGV[2])
local hold_key = "hold:" .. token
local hold_seats_key = "hold_seats:" .. token

local data = redis.call("HMGET", hold_key, "user_id", "event_id")
if not data[1] or data[1] ~= ARGV[1] then
    return {-1, "hold_not_found"}
end

local seat_ids = redis.call("SMEMBERS", hold_seats_key)
for i = 1, #seat_ids do
    redis.call("EXPIRE", "seat_hold:" .. data[2] .. ":" .. seat_ids[i], ttl)
end
redis.call("EXPIRE", hold_key, ttl)
redis.call("EXPIRE", hold_seats_key, ttl)
redis.call("EXPIRE", "user_holds:" .. ARGV[1], ttl)

return {1, ttl}
`)

var luaAtomicSeatRelease = redis.NewScript(`
-- KEYS[1] = token
-- ARGV[1] = user_id, empty to skip the owner check
local token = KEYS[1]
local hold_key = "hold:" .. token
local hold_seats_key = "hold_seats:" .. token

local data = redis.call("HMGET", hold_key, "user_id", "event_id")
if not data[1] then
    return {-1, "hold_not_found"}
end
if ARGV[1] ~= "" and data[1] ~= ARGV[1] then
    return {-1, "hold_not_found"}
end

local seat_ids = redis.call("SMEMBERS", hold_seats_key)
for i = 1, #seat_ids do
    redis.call("DEL", "seat_hold:" .. data[2] .. ":" .. seat_ids[i])
end

redis.call("SREM", "user_holds:" .. data[1], token)
redis.call("DEL", hold_key)
redis.call("DEL", hold_seats_key)

return {1, #seat_ids}
`)

// scriptReply is the decoded {status, payload...} of a hold script
type scriptReply struct {
	status  int64
	payload []string
	count   int64
}

func parseReply(result interface{}) (scriptReply, error) {
	arr, ok := result.([]interface{})
	if !ok || len(arr) == 0 {
		return scriptReply{}, fmt.Errorf("unexpected result format from Lua script")
	}
	status, ok := arr[0].(int64)
	if !ok {
		return scriptReply{}, fmt.Errorf("invalid status flag in Lua script result")
	}

	reply := scriptReply{status: status}
	for _, v := range arr[1:] {
		switch t := v.(type) {
		case string:
			reply.payload = append(reply.payload, t)
		case int64:
			reply.count = t
		}
	}
	return reply, nil
}

// AtomicHoldSeats holds seatIDs under token. Seats held by anybody else are
// returned as conflicts and nothing is written.
func (a *AtomicRedisOperations) AtomicHoldSeats(ctx context.Context, token, userID, eventID string, seatIDs []string, ttl time.Duration, extend bool) (scriptReply, error) {
	if a.redis == nil {
		return scriptReply{}, fmt.Errorf("redis client not available")
	}

	flag := "0"
	if extend {
		flag = "1"
	}
	args := []interface{}{userID, eventID, strconv.Itoa(int(ttl.Seconds())), flag}
	for _, id := range seatIDs {
		args = append(args, id)
	}

	result, err := luaAtomicSeatHold.Run(ctx, a.redis, []string{token}, args...).Result()
	if err != nil {
		return scriptReply{}, fmt.Errorf("failed to execute atomic seat hold: %w", err)
	}
	return parseReply(result)
}

// AtomicRefreshHold resets the TTL of every key of the hold
func (a *AtomicRedisOperations) AtomicRefreshHold(ctx context.Context, token, userID string, ttl time.Duration) (scriptReply, error) {
	if a.redis == nil {
		return scriptReply{}, fmt.Errorf("redis client not available")
	}

	result, err := luaAtomicHoldRefresh.Run(ctx, a.redis, []string{token}, userID, strconv.Itoa(int(ttl.Seconds()))).Result()
	if err != nil {
		return scriptReply{}, fmt.Errorf("failed to execute atomic hold refresh: %w", err)
	}
	return parseReply(result)
}

// AtomicReleaseHold frees every seat of the hold
func (a *AtomicRedisOperations) AtomicReleaseHold(ctx context.Context, token, userID string) (scriptReply, error) {
	if a.redis == nil {
		return scriptReply{}, fmt.Errorf("redis client not available")
	}

	result, err := luaAtomicSeatRelease.Run(ctx, a.redis, []string{token}, userID).Result()
	if err != nil {
		return scriptReply{}, fmt.Errorf("failed to execute atomic seat release: %w", err)
	}
	return parseReply(result)
}

// PreloadScripts loads the Lua scripts into Redis
func (a *AtomicRedisOperations) PreloadScripts(ctx context.Context) error {
	if a.redis == nil {
		return fmt.Errorf("redis client not available")
	}

	for name, script := range map[string]*redis.Script{
		"seat hold":    luaAtomicSeatHold,
		"hold refresh": luaAtomicHoldRefresh,
		"seat release": luaAtomicSeatRelease,
	} {
		if err := script.Load(ctx, a.redis).Err(); err != nil {
			return fmt.Errorf("failed to load %s script: %w", name, err)
		}
	}
	return nil
}
