package main

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirbelkuyu/dbforge/internal/apperr"
	"github.com/kadirbelkuyu/dbforge/internal/batch"
	"github.com/kadirbelkuyu/dbforge/internal/catalog"
	"github.com/kadirbelkuyu/dbforge/internal/profiles"
	"github.com/kadirbelkuyu/dbforge/internal/schema"
	"github.com/kadirbelkuyu/dbforge/internal/structure"
)

func TestParsePositions(t *testing.T) {
	positions, err := parsePositions([]string{"orders=40,80", "customers= 1.5 , -2"})
	require.NoError(t, err)
	assert.Equal(t, []schema.Position{
		{Table: "orders", X: 40, Y: 80},
		{Table: "customers", X: 1.5, Y: -2},
	}, positions)

	for _, bad := range []string{"orders", "=1,2", "orders=1", "orders=a,2", "orders=1,b"} {
		_, err := parsePositions([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestColumnRequestOnlyCarriesChangedFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "update"}
	cmd.Flags().StringVar(&columnType, "type", "", "")
	cmd.Flags().BoolVar(&columnNullable, "nullable", true, "")
	cmd.Flags().StringVar(&columnDefault, "default", "", "")
	cmd.Flags().BoolVar(&columnAutoIncrement, "autoincrement", false, "")
	cmd.Flags().StringVar(&columnComment, "comment", "", "")
	require.NoError(t, cmd.ParseFlags([]string{"--nullable=false", "--default", ""}))

	req := columnRequest(cmd)
	assert.Nil(t, req.Datatype)
	assert.Nil(t, req.AutoIncrement)
	assert.Nil(t, req.Comment)
	require.NotNil(t, req.Nullable)
	assert.False(t, *req.Nullable)
	require.NotNil(t, req.Default)
	assert.Equal(t, "", *req.Default)
}

func TestCurrentTarget(t *testing.T) {
	targetDB, targetInstance, targetStaging = 7, "test", true
	target, err := currentTarget()
	require.NoError(t, err)
	assert.Equal(t, int64(7), target.LogicalID)
	assert.Equal(t, catalog.EntityTest, target.Instance)
	assert.True(t, target.Staging)

	targetInstance = "archive"
	_, err = currentTarget()
	assert.Error(t, err)
}

func TestPrintOutput(t *testing.T) {
	defer func() { outputFmt = "json" }()

	var buf bytes.Buffer
	outputFmt = "yaml"
	require.NoError(t, printOutput(&buf, map[string]string{"staging": "main_1_7_staging"}))
	assert.Equal(t, "staging: main_1_7_staging\n", buf.String())

	buf.Reset()
	outputFmt = "json"
	require.NoError(t, printOutput(&buf, map[string]string{"name": "pk_3"}))
	assert.JSONEq(t, `{"name":"pk_3"}`, buf.String())

	outputFmt = "xml"
	assert.Error(t, printOutput(&buf, nil))
}

func TestStoredConstraintNames(t *testing.T) {
	results := []batch.Result{
		{Change: batch.Change{Op: batch.OpTableCreate, Table: "orders"}},
		{Change: batch.Change{Op: batch.OpConstraintCreate, Table: "orders", Constraint: &structure.ConstraintRequest{Name: "pk"}}, Stored: "pk_4"},
	}
	assert.Equal(t, map[string]string{"pk": "pk_4"}, stored(results))
}

func TestReportHidesServerText(t *testing.T) {
	cause := fmt.Errorf("failed to execute %q: %w", `ALTER TABLE "public"."t" ALTER COLUMN "n" TYPE integer`,
		&pq.Error{Code: "22P02", Message: "invalid input syntax for type integer: \"abc\""})
	message, code := report(commandError{apperr.Wrapf(cause, "change %d", 2)})

	assert.Equal(t, "change 2: bad request", message)
	assert.NotContains(t, message, "ALTER")
	assert.NotContains(t, message, "abc")
	assert.Equal(t, 2, code)
}

func TestReportExitCodes(t *testing.T) {
	cases := []struct {
		err     error
		message string
		code    int
	}{
		{apperr.NotFound("table %q not found", "orders"), `table "orders" not found`, 3},
		{apperr.NamingConflict("server %s already exists", "eu"), "server eu already exists", 4},
		{&pq.Error{Code: "42501", Message: "permission denied for table t"}, "permission denied for table t", 5},
		{errors.New("connection reset by peer"), "internal inconsistency", 1},
	}
	for _, tc := range cases {
		message, code := report(fmt.Errorf("run: %w", commandError{tc.err}))
		assert.Equal(t, tc.message, message)
		assert.Equal(t, tc.code, code)
	}
}

func TestReportUsageErrors(t *testing.T) {
	message, code := report(errors.New(`unknown flag: --dbb`))
	assert.Equal(t, "unknown flag: --dbb", message)
	assert.Equal(t, 2, code)
}

func TestCommandBodiesAreMarked(t *testing.T) {
	run := withProfiles(func(*profiles.Manager, []string) error { return nil })
	defer func() { configPath = "dbforge.yaml" }()
	configPath = t.TempDir() + "/missing.yaml"

	err := run(nil, nil)
	require.Error(t, err)
	var cmdErr commandError
	require.ErrorAs(t, err, &cmdErr)
	message, code := report(err)
	assert.Contains(t, message, "cannot load config")
	assert.Equal(t, 2, code)
}
