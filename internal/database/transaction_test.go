package database

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDB struct {
	query string
	vars  map[string]interface{}
	err   error
}

func (d *recordingDB) Connect(context.Context) error { return nil }
func (d *recordingDB) Close() error                  { return nil }
func (d *recordingDB) Ping(context.Context) error    { return nil }

func (d *recordingDB) Query(_ context.Context, query string, vars map[string]interface{}) ([]interface{}, error) {
	d.query, d.vars = query, vars
	return nil, d.err
}

func (d *recordingDB) QueryOne(context.Context, string, map[string]interface{}) (interface{}, error) {
	return nil, nil
}

func (d *recordingDB) Execute(ctx context.Context, query string, vars map[string]interface{}) error {
	_, err := d.Query(ctx, query, vars)
	return err
}

func TestTxBuilder_NamespacesVariables(t *testing.T) {
	t.Parallel()

	tb := NewTxBuilder()
	tb.Add("CREATE a SET user = $user, user_id = $user_id", map[string]interface{}{"user": 1, "user_id": 2})
	tb.Add("CREATE b SET user = $user", map[string]interface{}{"user": 3})

	query, vars := tb.Build()

	assert.True(t, strings.HasPrefix(query, "BEGIN TRANSACTION;\n"))
	assert.True(t, strings.HasSuffix(query, "COMMIT TRANSACTION;"))
	assert.Contains(t, query, "CREATE a SET user = $v1_user, user_id = $v1_user_id;")
	assert.Contains(t, query, "CREATE b SET user = $v2_user;")
	assert.Equal(t, map[string]interface{}{"v1_user": 1, "v1_user_id": 2, "v2_user": 3}, vars)
}

func TestTxBuilder_Empty(t *testing.T) {
	t.Parallel()

	query, vars := NewTxBuilder().Build()
	assert.Empty(t, query)
	assert.Nil(t, vars)
}

func TestAtomicBatch_ExecutesOnce(t *testing.T) {
	t.Parallel()

	db := &recordingDB{}
	batch := NewAtomicBatch().
		Add("CREATE x SET n = $n", map[string]interface{}{"n": 1}).
		Add("CREATE x SET n = $n", map[string]interface{}{"n": 2})

	require.NoError(t, batch.Execute(context.Background(), db))
	assert.Equal(t, 2, batch.Len())
	assert.Equal(t, 1, strings.Count(db.query, "BEGIN TRANSACTION"))
	assert.Equal(t, 2, db.vars["v2_n"])
}

func TestAtomicBatch_PropagatesError(t *testing.T) {
	t.Parallel()

	db := &recordingDB{err: errors.New("cancelled")}
	err := NewAtomicBatch().Add("CREATE x", nil).Execute(context.Background(), db)
	assert.Error(t, err)
}

func TestAtomicBatch_EmptyIsNoop(t *testing.T) {
	t.Parallel()

	db := &recordingDB{}
	require.NoError(t, NewAtomicBatch().Execute(context.Background(), db))
	assert.Empty(t, db.query)
}
