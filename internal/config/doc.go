// Package config loads Nemesis API configuration from environment variables.
//
//	cfg, err := config.Load()
//	if err != nil { ... }
//	if err := cfg.Validate(); err != nil { ... }
//
// # Configuration Groups
//
//   - ServerConfig: HTTP port, timeouts, CORS origins
//   - DatabaseConfig: SurrealDB connection and migrations
//   - JWTConfig: bearer token keys, issuer and TTL
//   - RedisConfig: optional distributed lock backend
//   - MatchingConfig: the matching policy
//   - SchedulerConfig: monthly cycle cadence
//   - NotifyConfig: SMTP for match emails
//   - AdminConfig: bcrypt hash of the service key
//   - RateLimitConfig: find-enemy rate limit
//
// # Matching Policy
//
// The policy starts from model.DefaultMatchingPolicy, is overlaid by the
// MATCHING_* variables, and finally by MATCHING_POLICY_FILE when set:
//
//	min_overlap: 3
//	exclusion_cycles: 3   # 0 disables, negative never rematches
//	mode: pairs           # or directed
//	mirror_pairs: false
//	max_inbound: 1        # directed mode only, 0 is unbounded
//
// Validate reports every problem at once through errors.Join.
package config
