package cli

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/forgo/nemesis/api/pkg/jwt"
)

type tokenOptions struct {
	keyPath  string
	userID   string
	email    string
	username string
	role     string
	issuer   string
	ttl      time.Duration
}

// TokenOutput is the json form of an issued token
type TokenOutput struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int       `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      string    `json:"user_id"`
	Role        string    `json:"role"`
}

// NewTokenCommand creates the token command.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &tokenOptions{}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign an access token for a user",
		Long: `Sign an RS256 access token with the private key.

Accounts live outside this service, so tokens for testing and for
operators are minted here.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(rootOpts, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.keyPath, "key", "./keys/private.pem", "path to the JWT private key")
	cmd.Flags().StringVar(&opts.userID, "user", "", "user ID (required)")
	cmd.Flags().StringVar(&opts.email, "email", "", "email claim")
	cmd.Flags().StringVar(&opts.username, "username", "", "username claim")
	cmd.Flags().StringVar(&opts.role, "role", jwt.RoleUser, "role claim (user|admin)")
	cmd.Flags().StringVar(&opts.issuer, "issuer", "nemesis.forgo.software", "JWT issuer")
	cmd.Flags().DurationVar(&opts.ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runToken(rootOpts *RootOptions, opts *tokenOptions, w io.Writer) error {
	if opts.role != jwt.RoleUser && opts.role != jwt.RoleAdmin {
		return fmt.Errorf("invalid role %q: must be %s or %s", opts.role, jwt.RoleUser, jwt.RoleAdmin)
	}

	svc, err := jwt.NewService(jwt.Config{
		PrivateKeyPath: opts.keyPath,
		Issuer:         opts.issuer,
		TTL:            opts.ttl,
	})
	if err != nil {
		return fmt.Errorf("loading signing key (generate one with 'nemesisctl keygen'): %w", err)
	}

	token, err := svc.Issue(opts.userID, opts.email, opts.username, opts.role)
	if err != nil {
		return err
	}

	out := TokenOutput{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(opts.ttl.Seconds()),
		ExpiresAt:   time.Now().Add(opts.ttl).UTC(),
		UserID:      opts.userID,
		Role:        opts.role,
	}
	return writeResult(w, rootOpts.Format, out, func(w io.Writer) {
		fmt.Fprintf(w, "User ID:  %s\n", out.UserID)
		fmt.Fprintf(w, "Role:     %s\n", out.Role)
		fmt.Fprintf(w, "Expires:  %s\n", out.ExpiresAt.Format(time.RFC3339))
		fmt.Fprintln(w)
		fmt.Fprintln(w, out.AccessToken)
	})
}

// NewKeygenCommand creates the keygen command.
func NewKeygenCommand() *cobra.Command {
	var privatePath, publicPath string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an RSA key pair for signing tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, p := range []string{privatePath, publicPath} {
				if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
					return err
				}
			}
			if err := jwt.GenerateKeyPair(privatePath, publicPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s and %s\n", privatePath, publicPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&privatePath, "private", "./keys/private.pem", "private key output path")
	cmd.Flags().StringVar(&publicPath, "public", "./keys/public.pem", "public key output path")

	return cmd
}

// HashKeyOutput is the json form of a hashed admin key
type HashKeyOutput struct {
	Key  string `json:"key,omitempty"`
	Hash string `json:"hash"`
}

// NewHashKeyCommand creates the hash-key command.
func NewHashKeyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash-key [key]",
		Short: "Hash an admin service key for ADMIN_KEY_HASH",
		Long: `Hash an admin service key with bcrypt.

Without an argument a random key is generated and printed once next to
its hash. Store the hash in ADMIN_KEY_HASH and send the key in the
X-Admin-Key header.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := ""
			if len(args) == 1 {
				key = args[0]
			}
			return runHashKey(rootOpts, key, cmd.OutOrStdout())
		},
	}
	return cmd
}

func runHashKey(rootOpts *RootOptions, key string, w io.Writer) error {
	generated := key == ""
	if generated {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return err
		}
		key = hex.EncodeToString(buf)
	}
	if len(key) > 72 {
		return errors.New("key longer than 72 bytes cannot be hashed with bcrypt")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	out := HashKeyOutput{Hash: string(hash)}
	if generated {
		out.Key = key
	}
	return writeResult(w, rootOpts.Format, out, func(w io.Writer) {
		if out.Key != "" {
			fmt.Fprintf(w, "Key:  %s\n", out.Key)
		}
		fmt.Fprintf(w, "Hash: %s\n", out.Hash)
	})
}
