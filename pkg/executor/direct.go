package executor

import (
	"context"
	"fmt"

	"github.com/ethpandaops/pgbenchoor/pkg/spec"
	"github.com/ethpandaops/pgbenchoor/pkg/target"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
)

// ConnectionError reports a target that could not be reached or a step that
// failed on it.
type ConnectionError struct {
	Target string
	Step   string
	Err    error
}

func (e *ConnectionError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("executing step %q on %s: %v", e.Step, e.Target, e.Err)
	}

	return fmt.Sprintf("unable to connect to the database %s: %v", e.Target, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// DirectExecutor runs steps once over a single connection inside one transaction.
type DirectExecutor interface {
	Execute(ctx context.Context, tgt *target.Target, steps []spec.Step, workDir string) error
}

// NewPgxExecutor creates a DirectExecutor backed by pgx.
func NewPgxExecutor(log logrus.FieldLogger) DirectExecutor {
	return &pgxExecutor{
		log: log.WithField("component", "direct-executor"),
	}
}

type pgxExecutor struct {
	log logrus.FieldLogger
}

// Ensure interface compliance.
var _ DirectExecutor = (*pgxExecutor)(nil)

// Execute opens a connection, runs all steps in one transaction and commits.
// Any failure rolls the transaction back; nothing is committed partially.
func (e *pgxExecutor) Execute(
	ctx context.Context,
	tgt *target.Target,
	steps []spec.Step,
	workDir string,
) error {
	connCfg, err := tgt.ConnConfig()
	if err != nil {
		return &ConnectionError{Target: tgt.Redacted(), Err: err}
	}

	conn, err := pgx.ConnectConfig(ctx, connCfg)
	if err != nil {
		return &ConnectionError{Target: tgt.Redacted(), Err: err}
	}

	defer func() {
		if closeErr := conn.Close(context.Background()); closeErr != nil {
			e.log.WithError(closeErr).Debug("Failed to close connection")
		}
	}()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return &ConnectionError{Target: tgt.Redacted(), Err: fmt.Errorf("beginning transaction: %w", err)}
	}

	return e.runSteps(ctx, tx, tgt.Redacted(), steps, workDir)
}

// stepTx is the part of pgx.Tx the step loop needs.
type stepTx interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// runSteps executes steps in order on tx and commits. On any failure the
// transaction is rolled back.
func (e *pgxExecutor) runSteps(
	ctx context.Context,
	tx stepTx,
	redacted string,
	steps []spec.Step,
	workDir string,
) (err error) {
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(context.Background()); rbErr != nil {
				e.log.WithError(rbErr).Debug("Failed to roll back transaction")
			}
		}
	}()

	for _, step := range steps {
		query := spec.Substitute(step.Run, workDir)

		e.log.WithField("step", step.Name).Info("Performing step")
		e.log.WithField("query", query).Debug("Step query")

		if _, err = tx.Exec(ctx, query); err != nil {
			return &ConnectionError{Target: redacted, Step: step.Name, Err: err}
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return &ConnectionError{Target: redacted, Err: fmt.Errorf("committing: %w", err)}
	}

	return nil
}
