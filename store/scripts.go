package store

import "github.com/redis/go-redis/v9"

// Store-side atomic mutations. Each script runs as one unit inside Redis, so
// concurrent writers from different clients can never observe or produce a
// half-applied counter/set pair.

// toggleLikeScript flips membership of ARGV[1] in the likedBy set (KEYS[2])
// and moves the likes counter on the post hash (KEYS[1]) by exactly one in
// the same step. Returns -1 when the post is gone, 0 on unlike, 1 on like.
var toggleLikeScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
if redis.call('SISMEMBER', KEYS[2], ARGV[1]) == 1 then
  redis.call('SREM', KEYS[2], ARGV[1])
  redis.call('HINCRBY', KEYS[1], 'likes', -1)
  return 0
end
redis.call('SADD', KEYS[2], ARGV[1])
redis.call('HINCRBY', KEYS[1], 'likes', 1)
return 1
`)

// addCommentScript writes the comment hash (KEYS[2]), indexes it under the
// post's comment zset (KEYS[3]) and bumps commentCount on the post hash
// (KEYS[1]). Returns -1 when the post is gone.
// ARGV: id, postId, authorId, authorName, content, createdAt, score.
var addCommentScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
redis.call('HSET', KEYS[2],
  'postId', ARGV[2],
  'authorId', ARGV[3],
  'authorName', ARGV[4],
  'content', ARGV[5],
  'createdAt', ARGV[6])
redis.call('ZADD', KEYS[3], ARGV[7], ARGV[1])
redis.call('HINCRBY', KEYS[1], 'commentCount', 1)
return 1
`)

// updatePostScript applies field/value pairs from ARGV onto the post hash
// (KEYS[1]) only if it still exists. Returns -1 when the post is gone.
var updatePostScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
for i = 1, #ARGV, 2 do
  redis.call('HSET', KEYS[1], ARGV[i], ARGV[i + 1])
end
return 1
`)
