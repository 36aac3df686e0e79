// Package jwt signs and validates the RS256 bearer tokens used by the
// Nemesis API.
//
// Tokens are usually minted by the account service; nemesisctl can issue
// them for local testing and cron triggers:
//
//	svc, err := jwt.NewService(jwt.Config{
//	    PrivateKeyPath: "keys/private.pem",
//	    Issuer:         "nemesis",
//	    TTL:            24 * time.Hour,
//	})
//	token, err := svc.Issue("user:abc", "a@example.com", "alice", jwt.RoleUser)
//
// Validation needs only the public key:
//
//	claims, err := svc.Validate(token)
//	if errors.Is(err, jwt.ErrTokenExpired) { ... }
package jwt
