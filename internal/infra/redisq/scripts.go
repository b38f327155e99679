package redisq

import "github.com/redis/go-redis/v9"

// Job hashes carry the state; the delayed/completed/failed sorted sets and the
// wait stream are indexes over it. Each script moves one job id atomically.

// KEYS: job, delayed, stream, completed, failed
// ARGV: id, kind, task_id, max_attempts, manual, now, run_at
var addScript = redis.NewScript(`
local state = redis.call('HGET', KEYS[1], 'state')
if state and state ~= 'completed' then
  return 0
end
if state then
  redis.call('ZREM', KEYS[4], ARGV[1])
  redis.call('ZREM', KEYS[5], ARGV[1])
  redis.call('DEL', KEYS[1])
end
redis.call('HSET', KEYS[1],
  'id', ARGV[1], 'kind', ARGV[2], 'task_id', ARGV[3],
  'attempts', '0', 'max_attempts', ARGV[4], 'manual', ARGV[5],
  'created_at', ARGV[6], 'run_at', ARGV[7])
if tonumber(ARGV[7]) > tonumber(ARGV[6]) then
  redis.call('HSET', KEYS[1], 'state', 'delayed')
  redis.call('ZADD', KEYS[2], ARGV[7], ARGV[1])
else
  local sid = redis.call('XADD', KEYS[3], '*', 'job', ARGV[1])
  redis.call('HSET', KEYS[1], 'state', 'waiting', 'stream_id', sid)
end
return 1
`)

// KEYS: job, delayed, stream
// ARGV: id, now
var promoteScript = redis.NewScript(`
local state = redis.call('HGET', KEYS[1], 'state')
if not state then
  return -1
end
if state == 'waiting' then
  return 1
end
if state ~= 'delayed' then
  return 0
end
redis.call('ZREM', KEYS[2], ARGV[1])
local sid = redis.call('XADD', KEYS[3], '*', 'job', ARGV[1])
redis.call('HSET', KEYS[1], 'state', 'waiting', 'stream_id', sid, 'run_at', ARGV[2])
return 1
`)

// KEYS: job
// ARGV: stream_id, consumer, now
var activateScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'state') ~= 'waiting' then
  return 0
end
if redis.call('HGET', KEYS[1], 'stream_id') ~= ARGV[1] then
  return 0
end
redis.call('HSET', KEYS[1], 'state', 'active', 'worker', ARGV[2], 'processed_at', ARGV[3])
return 1
`)

// KEYS: job, stream, completed
// ARGV: id, stream_id, group, now, remove_on_complete
var completeScript = redis.NewScript(`
redis.call('XACK', KEYS[2], ARGV[3], ARGV[2])
redis.call('XDEL', KEYS[2], ARGV[2])
if redis.call('HGET', KEYS[1], 'state') ~= 'active' then
  return 0
end
if redis.call('HGET', KEYS[1], 'stream_id') ~= ARGV[2] then
  return 0
end
if ARGV[5] == '1' then
  redis.call('DEL', KEYS[1])
  return 1
end
redis.call('HINCRBY', KEYS[1], 'attempts', 1)
redis.call('HSET', KEYS[1], 'state', 'completed', 'finished_at', ARGV[4])
redis.call('HDEL', KEYS[1], 'stream_id', 'worker')
redis.call('ZADD', KEYS[3], ARGV[4], ARGV[1])
return 1
`)

// KEYS: job, stream, delayed
// ARGV: id, stream_id, group, run_at, reason
var retryScript = redis.NewScript(`
redis.call('XACK', KEYS[2], ARGV[3], ARGV[2])
redis.call('XDEL', KEYS[2], ARGV[2])
if redis.call('HGET', KEYS[1], 'state') ~= 'active' then
  return 0
end
if redis.call('HGET', KEYS[1], 'stream_id') ~= ARGV[2] then
  return 0
end
redis.call('HINCRBY', KEYS[1], 'attempts', 1)
redis.call('HSET', KEYS[1], 'state', 'delayed', 'run_at', ARGV[4], 'last_error', ARGV[5])
redis.call('HDEL', KEYS[1], 'stream_id', 'worker')
redis.call('ZADD', KEYS[3], ARGV[4], ARGV[1])
return 1
`)

// KEYS: job, stream, failed
// ARGV: id, stream_id, group, now, reason
var failScript = redis.NewScript(`
redis.call('XACK', KEYS[2], ARGV[3], ARGV[2])
redis.call('XDEL', KEYS[2], ARGV[2])
if redis.call('HGET', KEYS[1], 'state') ~= 'active' then
  return 0
end
if redis.call('HGET', KEYS[1], 'stream_id') ~= ARGV[2] then
  return 0
end
redis.call('HINCRBY', KEYS[1], 'attempts', 1)
redis.call('HSET', KEYS[1], 'state', 'failed', 'finished_at', ARGV[4], 'last_error', ARGV[5])
redis.call('HDEL', KEYS[1], 'stream_id', 'worker')
redis.call('ZADD', KEYS[3], ARGV[4], ARGV[1])
return 1
`)

// KEYS: job, delayed, stream, completed, failed
// ARGV: id, group, pending_only
var removeScript = redis.NewScript(`
local state = redis.call('HGET', KEYS[1], 'state')
if not state then
  return -1
end
if ARGV[3] == '1' and state ~= 'delayed' and state ~= 'waiting' then
  return 0
end
local sid = redis.call('HGET', KEYS[1], 'stream_id')
if sid then
  redis.call('XACK', KEYS[3], ARGV[2], sid)
  redis.call('XDEL', KEYS[3], sid)
end
redis.call('ZREM', KEYS[2], ARGV[1])
redis.call('ZREM', KEYS[4], ARGV[1])
redis.call('ZREM', KEYS[5], ARGV[1])
redis.call('DEL', KEYS[1])
return 1
`)

// KEYS: job, stream, failed
// ARGV: id, stream_id, group, now, reason
// Returns 1 when requeued, 2 when the stall used up the last attempt.
var requeueScript = redis.NewScript(`
redis.call('XACK', KEYS[2], ARGV[3], ARGV[2])
redis.call('XDEL', KEYS[2], ARGV[2])
local state = redis.call('HGET', KEYS[1], 'state')
if state ~= 'active' and state ~= 'waiting' then
  return 0
end
if redis.call('HGET', KEYS[1], 'stream_id') ~= ARGV[2] then
  return 0
end
if state == 'active' then
  local attempts = redis.call('HINCRBY', KEYS[1], 'attempts', 1)
  local max = tonumber(redis.call('HGET', KEYS[1], 'max_attempts')) or 1
  if attempts >= max then
    redis.call('HSET', KEYS[1], 'state', 'failed', 'finished_at', ARGV[4], 'last_error', ARGV[5])
    redis.call('HDEL', KEYS[1], 'stream_id', 'worker')
    redis.call('ZADD', KEYS[3], ARGV[4], ARGV[1])
    return 2
  end
end
local sid = redis.call('XADD', KEYS[2], '*', 'job', ARGV[1])
redis.call('HSET', KEYS[1], 'state', 'waiting', 'stream_id', sid)
redis.call('HDEL', KEYS[1], 'worker')
return 1
`)
