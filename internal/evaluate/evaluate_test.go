package evaluate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dqsentry/internal/adapter"
	"github.com/leapstack-labs/dqsentry/internal/rules"
	"github.com/leapstack-labs/dqsentry/internal/stage"
	"github.com/leapstack-labs/dqsentry/internal/testutil"
)

func setupEvaluator(t *testing.T, statements ...string) (*Evaluator, adapter.Adapter) {
	t.Helper()
	db := testutil.OpenStageDB(t)
	testutil.ExecAll(t, db, statements...)

	meta, err := stage.Collect(context.Background(), db)
	require.NoError(t, err)
	return New(meta, db, testutil.NewTestLogger(t)), db
}

func TestEvaluateNullPercentage(t *testing.T) {
	e, _ := setupEvaluator(t,
		`CREATE TABLE staging_events (event_id INTEGER, user_id VARCHAR)`,
		`INSERT INTO staging_events VALUES
			(1, 'u1'), (2, 'u2'), (3, NULL), (4, 'u4'), (5, NULL),
			(6, 'u6'), (7, 'u7'), (8, NULL), (9, 'u9'), (10, 'u10')`,
	)

	rule := &rules.CheckRule{
		ID: "events_user_id_not_null", Table: "events", Dimension: "completeness",
		Columns: []string{"user_id"}, Kind: rules.KindNullPercentage,
		Severity: 4, Weight: 2.0,
		Threshold: rules.Threshold{Warning: 0.2, Fail: 0.5},
	}
	result, err := e.Evaluate(context.Background(), rule)
	require.NoError(t, err)

	assert.Equal(t, int64(3), result.FailureCount)
	assert.Equal(t, int64(10), result.TotalRows)
	assert.InDelta(t, 0.3, result.FailureRate, 1e-9)
	assert.Equal(t, StatusWarn, result.Status)
	// 0.3 * (4/5) * 2.0
	assert.InDelta(t, 0.48, result.Penalty, 1e-9)
	assert.Equal(t, "missing", result.IssueType)
	assert.Equal(t, "staging_events", result.StageTable)

	require.Len(t, result.Samples, 3)
	for _, sample := range result.Samples {
		assert.Nil(t, sample["user_id"])
		assert.NotNil(t, sample["event_id"])
	}
}

func TestEvaluateEnum(t *testing.T) {
	e, _ := setupEvaluator(t,
		`CREATE TABLE staging_users (id INTEGER, status VARCHAR)`,
		`INSERT INTO staging_users VALUES
			(1, 'active'), (2, ' ACTIVE '), (3, 'inactive'), (4, 'pending'), (5, NULL)`,
	)

	rule := &rules.CheckRule{
		ID: "users_status_enum", Table: "users", Dimension: "validity",
		Columns: []string{"status"}, Kind: rules.KindEnum,
		Args: []string{"active", "inactive"}, Severity: 3, Weight: 1.0,
	}
	result, err := e.Evaluate(context.Background(), rule)
	require.NoError(t, err)

	// Whitespace and case are normalized; NULL never fails an enum check.
	assert.Equal(t, int64(1), result.FailureCount)
	require.Len(t, result.Samples, 1)
	require.NotNil(t, result.Samples[0]["status"])
	assert.Equal(t, "pending", *result.Samples[0]["status"])
}

func TestEvaluatePattern(t *testing.T) {
	e, _ := setupEvaluator(t,
		`CREATE TABLE staging_users (id INTEGER, email VARCHAR)`,
		`INSERT INTO staging_users VALUES
			(1, 'a@example.com'), (2, ' b@example.com '), (3, 'not-an-email'), (4, NULL)`,
	)

	rule := &rules.CheckRule{
		ID: "users_email_format", Table: "users", Dimension: "validity",
		Columns: []string{"email"}, Kind: rules.KindPattern,
		Args: []string{`^[^@]+@[^@]+\.[^@]+$`}, Severity: 2, Weight: 1.0,
	}
	result, err := e.Evaluate(context.Background(), rule)
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.FailureCount)
	assert.Equal(t, int64(4), result.TotalRows)
	assert.Equal(t, "invalid", result.IssueType)
}

func TestEvaluateDateRange(t *testing.T) {
	e, _ := setupEvaluator(t,
		`CREATE TABLE staging_events (id INTEGER, created_at TIMESTAMP)`,
		`INSERT INTO staging_events VALUES
			(1, TIMESTAMP '2024-06-01 10:00:00'),
			(2, TIMESTAMP '2019-12-31 23:59:59'),
			(3, TIMESTAMP '2999-01-01 00:00:00'),
			(4, NULL)`,
	)

	rule := &rules.CheckRule{
		ID: "events_created_in_range", Table: "events", Dimension: "validity",
		Columns: []string{"created_at"}, Kind: rules.KindDateRange,
		Args: []string{"2020-01-01 00:00:00", "now"}, Severity: 2, Weight: 1.0,
	}
	result, err := e.Evaluate(context.Background(), rule)
	require.NoError(t, err)

	// One row before the start bound, one in the future, NULL skipped.
	assert.Equal(t, int64(2), result.FailureCount)
}

func TestEvaluateDateRangeNoBounds(t *testing.T) {
	e, _ := setupEvaluator(t,
		`CREATE TABLE staging_events (id INTEGER, created_at TIMESTAMP)`,
		`INSERT INTO staging_events VALUES (1, TIMESTAMP '2024-06-01 10:00:00')`,
	)

	rule := &rules.CheckRule{
		ID: "events_unbounded", Table: "events", Dimension: "validity",
		Columns: []string{"created_at"}, Kind: rules.KindDateRange,
		Severity: 1, Weight: 1.0,
	}
	result, err := e.Evaluate(context.Background(), rule)
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.FailureCount)
	assert.Equal(t, StatusPass, result.Status)
}

func TestEvaluateTimestampOrder(t *testing.T) {
	e, _ := setupEvaluator(t,
		`CREATE TABLE staging_orders (id INTEGER, created_at TIMESTAMP, shipped_at TIMESTAMP, delivered_at TIMESTAMP)`,
		`INSERT INTO staging_orders VALUES
			(1, TIMESTAMP '2024-01-01', TIMESTAMP '2024-01-02', TIMESTAMP '2024-01-03'),
			(2, TIMESTAMP '2024-01-05', TIMESTAMP '2024-01-04', NULL),
			(3, NULL, TIMESTAMP '2024-01-02', NULL),
			(4, TIMESTAMP '2024-01-01', NULL, NULL)`,
	)

	rule := &rules.CheckRule{
		ID: "orders_lifecycle_order", Table: "orders", Dimension: "consistency",
		Columns: []string{"created_at", "shipped_at", "delivered_at"},
		Kind:    rules.KindTimestampOrder, Severity: 4, Weight: 1.0,
	}
	result, err := e.Evaluate(context.Background(), rule)
	require.NoError(t, err)

	// Row 2: shipped before created. Row 3: shipped with NULL created.
	assert.Equal(t, int64(2), result.FailureCount)
	assert.Equal(t, "inconsistency", result.IssueType)
}

func TestEvaluateUniqueMapping(t *testing.T) {
	e, _ := setupEvaluator(t,
		`CREATE TABLE staging_events (id INTEGER, session_id VARCHAR, user_id VARCHAR)`,
		`INSERT INTO staging_events VALUES
			(1, 's1', 'u1'), (2, 's1', 'u1'),
			(3, 's2', 'u1'), (4, 's2', 'u2'),
			(5, NULL, 'u3')`,
	)

	rule := &rules.CheckRule{
		ID: "events_session_single_user", Table: "events", Dimension: "consistency",
		Kind: rules.KindUniqueMapping, Args: []string{"session_id", "user_id"},
		Severity: 5, Weight: 1.0,
	}
	result, err := e.Evaluate(context.Background(), rule)
	require.NoError(t, err)

	// Both rows of the inconsistent session fail; NULL keys are exempt.
	assert.Equal(t, int64(2), result.FailureCount)
}

func TestEvaluateDuplicatePercentage(t *testing.T) {
	e, _ := setupEvaluator(t,
		`CREATE TABLE staging_events (event_id INTEGER, event_type VARCHAR)`,
		`INSERT INTO staging_events VALUES
			(1, 'click'), (1, 'click'), (1, 'click'),
			(2, 'view'), (3, 'click')`,
	)

	rule := &rules.CheckRule{
		ID: "events_no_duplicates", Table: "events", Dimension: "uniqueness",
		Columns: []string{"event_id", "event_type"},
		Kind:    rules.KindDuplicatePercentage, Severity: 3, Weight: 1.0,
	}
	result, err := e.Evaluate(context.Background(), rule)
	require.NoError(t, err)

	// One row per duplicate group survives; the other two fail.
	assert.Equal(t, int64(2), result.FailureCount)
	assert.Equal(t, int64(5), result.TotalRows)
	assert.Equal(t, "duplicate", result.IssueType)
}

func TestEvaluateForeignKey(t *testing.T) {
	e, _ := setupEvaluator(t,
		`CREATE TABLE staging_events (id INTEGER, user_id VARCHAR)`,
		`CREATE TABLE staging_users (user_id VARCHAR)`,
		`INSERT INTO staging_users VALUES ('u1'), ('u2')`,
		`INSERT INTO staging_events VALUES (1, 'u1'), (2, 'X'), (3, NULL)`,
	)

	rule := &rules.CheckRule{
		ID: "events_user_fk", Table: "events", Dimension: "consistency",
		Columns: []string{"user_id"}, Kind: rules.KindForeignKey,
		Args: []string{"users.user_id"}, Severity: 5, Weight: 2.0,
	}
	result, err := e.Evaluate(context.Background(), rule)
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.FailureCount)
	assert.Equal(t, "orphan", result.IssueType)
	require.Len(t, result.Samples, 1)
	require.NotNil(t, result.Samples[0]["user_id"])
	assert.Equal(t, "X", *result.Samples[0]["user_id"])
}

func TestEvaluateNonNegativeCounts(t *testing.T) {
	e, _ := setupEvaluator(t,
		`CREATE TABLE staging_events (id INTEGER, retry_count INTEGER)`,
		`CREATE TABLE staging_orders (id INTEGER, item_count INTEGER, note VARCHAR)`,
		`INSERT INTO staging_events VALUES (1, 0), (2, -1), (3, 5)`,
		`INSERT INTO staging_orders VALUES (1, 2, 'ok'), (2, -3, 'bad')`,
	)

	rule := &rules.CheckRule{
		ID: "no_negative_counts", Table: "*", Dimension: "validity",
		ColumnRegex: `_count$`, Kind: rules.KindNonNegativeCounts,
		Severity: 3, Weight: 1.0,
	}
	result, err := e.Evaluate(context.Background(), rule)
	require.NoError(t, err)

	// One negative in each matched table; totals sum over matched tables.
	assert.Equal(t, int64(2), result.FailureCount)
	assert.Equal(t, int64(5), result.TotalRows)
	assert.Equal(t, "*", result.StageTable)

	require.Len(t, result.Samples, 2)
	for _, sample := range result.Samples {
		require.NotNil(t, sample["failed_column"])
	}
}

func TestEvaluateZeroRowTable(t *testing.T) {
	e, _ := setupEvaluator(t,
		`CREATE TABLE staging_events (id INTEGER, user_id VARCHAR)`,
	)

	rule := &rules.CheckRule{
		ID: "empty_table", Table: "events", Dimension: "completeness",
		Columns: []string{"user_id"}, Kind: rules.KindNullPercentage,
		Severity: 5, Weight: 1.0,
	}
	result, err := e.Evaluate(context.Background(), rule)
	require.NoError(t, err)

	assert.Equal(t, int64(0), result.FailureCount)
	assert.Equal(t, int64(0), result.TotalRows)
	assert.Equal(t, 0.0, result.FailureRate)
	assert.Equal(t, StatusPass, result.Status)
	assert.Equal(t, 0.0, result.Penalty)
}

func TestEvaluateSampleLimit(t *testing.T) {
	e, _ := setupEvaluator(t,
		`CREATE TABLE staging_events (id INTEGER, user_id VARCHAR)`,
		`INSERT INTO staging_events
			SELECT range, NULL FROM range(20)`,
	)

	rule := &rules.CheckRule{
		ID: "all_null", Table: "events", Dimension: "completeness",
		Columns: []string{"user_id"}, Kind: rules.KindNullPercentage,
		Severity: 1, Weight: 1.0,
	}
	result, err := e.Evaluate(context.Background(), rule)
	require.NoError(t, err)

	assert.Equal(t, int64(20), result.FailureCount)
	assert.Len(t, result.Samples, SampleLimit)
}

func TestEvaluateUnknownKind(t *testing.T) {
	e, _ := setupEvaluator(t,
		`CREATE TABLE staging_events (id INTEGER)`,
	)

	rule := &rules.CheckRule{ID: "bad", Table: "events", Kind: rules.Kind("NOT_A_KIND")}
	_, err := e.Evaluate(context.Background(), rule)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no handler")
}

func TestEvaluateMissingStagingTable(t *testing.T) {
	e, _ := setupEvaluator(t,
		`CREATE TABLE staging_events (id INTEGER)`,
	)

	rule := &rules.CheckRule{
		ID: "ghost", Table: "customers", Dimension: "completeness",
		Columns: []string{"id"}, Kind: rules.KindNullPercentage,
	}
	_, err := e.Evaluate(context.Background(), rule)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing staging table")
}

func TestStageTablesIgnoreNonPrefixed(t *testing.T) {
	db := testutil.OpenStageDB(t)
	testutil.ExecAll(t, db,
		`CREATE TABLE staging_events (id INTEGER)`,
		`CREATE TABLE lookup_codes (code VARCHAR)`,
	)

	meta, err := stage.Collect(context.Background(), db)
	require.NoError(t, err)
	assert.Contains(t, meta.TableMap, "events")
	assert.NotContains(t, meta.TableMap, "lookup_codes")
}
