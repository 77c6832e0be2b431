package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/gaborage/go-datasource/config"
	"github.com/gaborage/go-datasource/database"
	dbtest "github.com/gaborage/go-datasource/database/testing"
	"github.com/gaborage/go-datasource/database/types"
)

func ordersSchema() *types.TableSchema {
	length := int64(64)
	def := "now()"
	return &types.TableSchema{
		Name: "orders",
		Columns: []types.ColumnSchema{
			{Name: "id", Type: "bigint", Position: 1},
			{Name: "reference", Type: "varchar", Length: &length, Nullable: true, Position: 2},
			{Name: "created_at", Type: "timestamp", Default: &def, Position: 3},
		},
		PrimaryKey: []string{"id"},
		ForeignKeys: []types.ForeignKey{
			{Name: "fk_orders_user", Columns: []string{"user_id"}, ReferencedTable: "users", ReferencedColumns: []string{"id"}},
		},
	}
}

func newFakeDialect() *dbtest.FakeDialect {
	d := dbtest.NewFakeDialect()
	d.Tables = []string{"orders", "users"}
	d.Schemas = map[string]*types.TableSchema{"orders": ordersSchema()}
	return d
}

// runCommand executes the command tree against conn and returns stdout.
func runCommand(t *testing.T, conn types.Connection, args ...string) (string, *Options, error) {
	t.Helper()

	opts := &Options{
		version: "test",
		connect: func(context.Context, *Options) (types.Connection, error) { return conn, nil },
	}
	cmd := newRootCommand(opts)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), opts, err
}

func TestTablesCommand(t *testing.T) {
	conn, _ := dbtest.NewMockSession(t, newFakeDialect())

	out, opts, err := runCommand(t, conn, "tables", "-d", "reporting")
	require.NoError(t, err)
	assert.Equal(t, "orders\nusers\n", out)
	assert.Equal(t, "reporting", opts.Datasource)
}

func TestDescribeCommandTable(t *testing.T) {
	conn, _ := dbtest.NewMockSession(t, newFakeDialect())

	out, _, err := runCommand(t, conn, "describe", "orders")
	require.NoError(t, err)
	assert.Contains(t, out, "Table: orders")
	assert.Regexp(t, `2\s+reference\s+varchar\(64\)\s+YES`, out)
	assert.Regexp(t, `3\s+created_at\s+timestamp\s+NO\s+now\(\)`, out)
	assert.Contains(t, out, "Primary key: id")
	assert.Contains(t, out, "fk_orders_user (user_id) -> users (id)")
}

func TestDescribeCommandStructuredFormats(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		conn, _ := dbtest.NewMockSession(t, newFakeDialect())
		out, _, err := runCommand(t, conn, "describe", "orders", "--format", "json")
		require.NoError(t, err)

		var ts types.TableSchema
		require.NoError(t, json.Unmarshal([]byte(out), &ts))
		assert.Equal(t, *ordersSchema(), ts)
	})

	t.Run("yaml", func(t *testing.T) {
		conn, _ := dbtest.NewMockSession(t, newFakeDialect())
		out, _, err := runCommand(t, conn, "describe", "orders", "-f", "yaml")
		require.NoError(t, err)
		assert.Contains(t, out, "primaryKey:")

		var ts types.TableSchema
		require.NoError(t, yaml.Unmarshal([]byte(out), &ts))
		assert.Equal(t, *ordersSchema(), ts)
	})
}

func TestDescribeCommandErrors(t *testing.T) {
	conn, _ := dbtest.NewMockSession(t, newFakeDialect())

	_, _, err := runCommand(t, conn, "describe", "missing")
	assert.ErrorIs(t, err, types.ErrTableNotFound)

	_, _, err = runCommand(t, conn, "describe", "orders", "--format", "xml")
	assert.ErrorContains(t, err, "invalid format: xml")
}

func TestExecCommandPrintsRows(t *testing.T) {
	conn, mock := dbtest.NewMockSession(t, newFakeDialect())
	mock.ExpectQuery("SELECT id, name, nickname FROM users WHERE id > ?").
		WithArgs(int64(1)).
		WillReturnRows(dbtest.NewRowSet("id", "name", "nickname").
			AddRow(int64(2), []byte("Bob"), nil).
			AddRow(int64(3), "Carol", "cc").
			MockRows())

	out, _, err := runCommand(t, conn, "exec", "SELECT id, name, nickname FROM users WHERE id > ?", "1", "--type", "integer")
	require.NoError(t, err)
	assert.Regexp(t, `id\s+name\s+nickname`, out)
	assert.Regexp(t, `2\s+Bob\s+NULL`, out)
	assert.Regexp(t, `3\s+Carol\s+cc`, out)
	assert.Contains(t, out, "(2 rows)")
}

func TestExecCommandNamedParameters(t *testing.T) {
	conn, mock := dbtest.NewMockSession(t, newFakeDialect())
	mock.ExpectExec("UPDATE users SET active = ? WHERE id = ?").
		WithArgs(true, "42").
		WillReturnResult(sqlmock.NewResult(0, 1))

	out, _, err := runCommand(t, conn, "exec", "UPDATE users SET active = :active WHERE id = :id",
		"-p", "id=42", "-p", "active=true", "-t", "active=boolean")
	require.NoError(t, err)
	assert.Equal(t, "1 rows affected\n", out)
}

func TestExecCommandTypeHintFailure(t *testing.T) {
	conn, _ := dbtest.NewMockSession(t, newFakeDialect())

	out, _, err := runCommand(t, conn, "exec", "UPDATE users SET active = :active WHERE id = :id",
		"-p", "id=42", "-p", "active=yes", "-t", "active=boolean")
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindTypeMismatch))
	assert.Empty(t, out)
}

func TestExecCommandTransactionWithoutConstraints(t *testing.T) {
	dialect := newFakeDialect()
	conn, mock := dbtest.NewMockSession(t, dialect)
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM users WHERE id = ?").
		WithArgs("7").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	out, _, err := runCommand(t, conn, "exec", "--tx", "--no-constraints", "DELETE FROM users WHERE id = ?", "7")
	require.NoError(t, err)
	assert.Equal(t, "3 rows affected\n", out)
	assert.Equal(t, 1, dialect.Disabled())
	assert.Equal(t, 1, dialect.Released())
}

func TestExecCommandTransactionRollsBackOnError(t *testing.T) {
	conn, mock := dbtest.NewMockSession(t, newFakeDialect())
	failure := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM users").WillReturnError(failure)
	mock.ExpectRollback()

	_, _, err := runCommand(t, conn, "exec", "--tx", "DELETE FROM users")
	require.Error(t, err)
	assert.ErrorIs(t, err, failure)
}

func TestExecCommandLogsQueries(t *testing.T) {
	recorder := dbtest.NewRecordingQueryLogger()
	conn, mock := dbtest.NewMockSession(t, newFakeDialect(), database.WithQueryLogger(recorder))
	mock.ExpectExec("DELETE FROM sessions").WillReturnResult(sqlmock.NewResult(0, 0))

	_, _, err := runCommand(t, conn, "--log-queries", "exec", "DELETE FROM sessions")
	require.NoError(t, err)
	assert.Equal(t, []string{"DELETE FROM sessions"}, recorder.SQL())
}

func TestExecCommandBindingErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"values and params", []string{"exec", "SELECT ?", "1", "-p", "a=1"}, "either trailing values or --param"},
		{"malformed param", []string{"exec", "SELECT :a", "-p", "a"}, `invalid parameter "a"`},
		{"malformed hint", []string{"exec", "SELECT :a", "-p", "a=1", "-t", "a="}, `invalid type hint "a="`},
		{"missing sql", []string{"exec"}, "requires at least 1 arg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			connected := false
			opts := &Options{connect: func(context.Context, *Options) (types.Connection, error) {
				connected = true
				return nil, errors.New("unexpected connect")
			}}
			cmd := newRootCommand(opts)
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			assert.ErrorContains(t, err, tt.want)
			assert.False(t, connected)
		})
	}
}

func TestBindingsAssignsBareHintsInOrder(t *testing.T) {
	eo := &execOptions{hints: []string{"integer", "", "date"}}
	params, hints, err := eo.bindings([]string{"1", "x", "2024-01-02"})
	require.NoError(t, err)

	assert.Equal(t, []any{"1", "x", "2024-01-02"}, params.Values())
	assert.Equal(t, "integer", hints.ForIndex(0))
	assert.Empty(t, hints.ForIndex(1))
	assert.Equal(t, "date", hints.ForIndex(2))
}

func TestConnectFailureIsReturned(t *testing.T) {
	opts := &Options{connect: func(context.Context, *Options) (types.Connection, error) {
		return nil, errors.New("dial tcp: refused")
	}}
	cmd := newRootCommand(opts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"tables"})

	assert.ErrorContains(t, cmd.Execute(), "dial tcp: refused")
}

func TestTraceWritesSpansToStderr(t *testing.T) {
	conn, _ := dbtest.NewMockSession(t, newFakeDialect())

	opts := &Options{
		version: "test",
		connect: func(context.Context, *Options) (types.Connection, error) { return conn, nil },
	}
	cmd := newRootCommand(opts)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"--trace", "tables"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "orders\nusers\n", out.String())
	assert.True(t, conn.LogQueries(types.LogRead), "--trace turns query logging on")
	assert.Contains(t, errOut.String(), "0 statements in 0s")
}

func TestOpenDatasourceUnknownName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
datasources:
  main:
    type: postgresql
    host: localhost
    port: 5432
    database: app
    username: app
`), 0o600))

	_, err := openDatasource(context.Background(), &Options{ConfigPath: path, Datasource: "reporting"})
	require.Error(t, err)
	assert.True(t, config.IsNotConfigured(err))
}

func TestVersionCommand(t *testing.T) {
	out, _, err := runCommand(t, nil, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "dbconn test")
}

func TestKeysCommand(t *testing.T) {
	out, _, err := runCommand(t, nil, "keys", "-d", "main")
	require.NoError(t, err)

	assert.Regexp(t, `datasources\.main\.type\s+DATASOURCES_MAIN_TYPE\s+string\s+optional,oneof=postgresql oracle`, out)
	assert.Regexp(t, `datasources\.main\.port\s+DATASOURCES_MAIN_PORT\s+int\s+gte=0,lte=65535`, out)
	assert.Regexp(t, `datasources\.main\.pool\.idle\.time\s+DATASOURCES_MAIN_POOL_IDLE_TIME\s+duration`, out)
	assert.Contains(t, out, "DATASOURCES_MAIN_CACHE_REDIS_HOST")
}

// exampleArgs splits one example line into arguments, honouring double quotes.
func exampleArgs(line string) []string {
	var (
		args    []string
		current strings.Builder
		quoted  bool
		started bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			quoted, started = !quoted, true
		case r == ' ' && !quoted:
			if started {
				args = append(args, current.String())
				current.Reset()
				started = false
			}
		default:
			current.WriteRune(r)
			started = true
		}
	}
	if started {
		args = append(args, current.String())
	}
	return args
}

func TestRootExamplesParse(t *testing.T) {
	root := NewRootCommand("test")
	var lines []string
	for _, line := range strings.Split(root.Example, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "dbconn ") {
			lines = append(lines, line)
		}
	}
	require.NotEmpty(t, lines)

	for _, line := range lines {
		t.Run(line, func(t *testing.T) {
			args := exampleArgs(line)[1:]
			cmd, rest, err := root.Find(args)
			require.NoError(t, err)
			require.NotSame(t, root, cmd, "example names a subcommand")
			assert.NoError(t, cmd.ParseFlags(rest))
		})
	}
}
