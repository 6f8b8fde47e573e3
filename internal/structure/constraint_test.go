package structure_test

import (
	"context"
	"fmt"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirbelkuyu/dbforge/internal/apperr"
	"github.com/kadirbelkuyu/dbforge/internal/structure"
)

func (h *harness) expectSuffix(value int64) {
	h.expectExec(`CREATE SEQUENCE IF NOT EXISTS "public"."dbforge_constraint_seq"`)
	h.mock.ExpectQuery(regexp.QuoteMeta("SELECT nextval($1)")).
		WithArgs(`"public"."dbforge_constraint_seq"`).
		WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(value))
}

func TestCreateConstraintSuffixesName(t *testing.T) {
	h := newHarness(t)

	for suffix := int64(1); suffix <= 2; suffix++ {
		h.mock.ExpectBegin()
		h.expectTable("users", true)
		h.expectSuffix(suffix)
		stored := fmt.Sprintf("uk_%d", suffix)
		h.expectConstraint("users", stored, false)
		h.expectExec(`ALTER TABLE "public"."users" ADD CONSTRAINT "` + stored + `" UNIQUE ("email", "tenant")`)
		h.mock.ExpectCommit()
	}

	req := structure.ConstraintRequest{Name: "uk", Unique: ptr(true), Columns: []string{"email", "tenant"}}

	first, err := h.engine.CreateConstraint(context.Background(), h.db, "users", req)
	require.NoError(t, err)
	assert.Equal(t, "uk_1", first)

	second, err := h.engine.CreateConstraint(context.Background(), h.db, "users", req)
	require.NoError(t, err)
	assert.Equal(t, "uk_2", second)

	h.verify()
}

func TestCreateConstraintPrimaryAndForeign(t *testing.T) {
	h := newHarness(t)

	h.mock.ExpectBegin()
	h.expectTable("orders", true)
	h.expectSuffix(7)
	h.expectConstraint("orders", "pk_7", false)
	h.expectExec(`ALTER TABLE "public"."orders" ADD CONSTRAINT "pk_7" PRIMARY KEY ("id")`)
	h.mock.ExpectCommit()

	h.mock.ExpectBegin()
	h.expectTable("orders", true)
	h.expectSuffix(8)
	h.expectConstraint("orders", "fk_customer_8", false)
	h.expectExec(`ALTER TABLE "public"."orders" ADD CONSTRAINT "fk_customer_8" FOREIGN KEY ("customer_id") REFERENCES "public"."customers" ("id")`)
	h.mock.ExpectCommit()

	pk, err := h.engine.CreateConstraint(context.Background(), h.db, "orders", structure.ConstraintRequest{
		Name: "pk", Primary: ptr(true), Columns: []string{"id"},
	})
	require.NoError(t, err)
	assert.Equal(t, "pk_7", pk)

	fk, err := h.engine.CreateConstraint(context.Background(), h.db, "orders", structure.ConstraintRequest{
		Name:             "fk_customer",
		Foreign:          ptr(true),
		Columns:          []string{"customer_id"},
		ReferencedTable:  ptr("customers"),
		ReferencedColumn: ptr("id"),
	})
	require.NoError(t, err)
	assert.Equal(t, "fk_customer_8", fk)

	h.verify()
}

func TestCreateConstraintValidation(t *testing.T) {
	cases := map[string]structure.ConstraintRequest{
		"missing name":      {Unique: ptr(true), Columns: []string{"a"}},
		"check":             {Name: "ck", Check: ptr("a > 0")},
		"no kind":           {Name: "c", Columns: []string{"a"}},
		"two kinds":         {Name: "c", Unique: ptr(true), Primary: ptr(true), Columns: []string{"a"}},
		"unique no columns": {Name: "c", Unique: ptr(true)},
		"foreign two columns": {
			Name: "fk", Foreign: ptr(true), Columns: []string{"a", "b"},
			ReferencedTable: ptr("t"), ReferencedColumn: ptr("id"),
		},
		"foreign without table": {
			Name: "fk", Foreign: ptr(true), Columns: []string{"a"}, ReferencedColumn: ptr("id"),
		},
		"foreign without column": {
			Name: "fk", Foreign: ptr(true), Columns: []string{"a"}, ReferencedTable: ptr("t"),
		},
	}

	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			_, err := h.engine.CreateConstraint(context.Background(), h.db, "t", req)
			requireKind(t, err, apperr.ErrBadRequest)
			h.verify()
		})
	}
}

func TestCreateConstraintCollision(t *testing.T) {
	h := newHarness(t)

	h.mock.ExpectBegin()
	h.expectTable("t", true)
	h.expectSuffix(3)
	h.expectConstraint("t", "uk_3", true)
	h.mock.ExpectRollback()

	_, err := h.engine.CreateConstraint(context.Background(), h.db, "t", structure.ConstraintRequest{
		Name: "uk", Unique: ptr(true), Columns: []string{"a"},
	})
	requireKind(t, err, apperr.ErrNamingConflict)
	h.verify()
}

func TestRenameConstraint(t *testing.T) {
	t.Run("renames", func(t *testing.T) {
		h := newHarness(t)
		h.mock.ExpectBegin()
		h.expectTable("t", true)
		h.expectConstraint("t", "uk_1", true)
		h.expectConstraint("t", "email_unique", false)
		h.expectExec(`ALTER TABLE "public"."t" RENAME CONSTRAINT "uk_1" TO "email_unique"`)
		h.mock.ExpectCommit()

		require.NoError(t, h.engine.RenameConstraint(context.Background(), h.db, "t", "uk_1", "email_unique"))
		h.verify()
	})

	t.Run("target taken", func(t *testing.T) {
		h := newHarness(t)
		h.mock.ExpectBegin()
		h.expectTable("t", true)
		h.expectConstraint("t", "uk_1", true)
		h.expectConstraint("t", "uk_2", true)
		h.mock.ExpectRollback()

		err := h.engine.RenameConstraint(context.Background(), h.db, "t", "uk_1", "uk_2")
		requireKind(t, err, apperr.ErrNamingConflict)
		h.verify()
	})
}

func TestDeleteConstraint(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		h := newHarness(t)
		h.mock.ExpectBegin()
		h.expectTable("t", true)
		h.expectConstraint("t", "uk_9", false)
		h.mock.ExpectRollback()

		err := h.engine.DeleteConstraint(context.Background(), h.db, "t", "uk_9")
		requireKind(t, err, apperr.ErrNotFound)
		h.verify()
	})

	t.Run("existing", func(t *testing.T) {
		h := newHarness(t)
		h.mock.ExpectBegin()
		h.expectTable("t", true)
		h.expectConstraint("t", "uk_1", true)
		h.expectExec(`ALTER TABLE "public"."t" DROP CONSTRAINT "uk_1"`)
		h.mock.ExpectCommit()

		require.NoError(t, h.engine.DeleteConstraint(context.Background(), h.db, "t", "uk_1"))
		h.verify()
	})
}
