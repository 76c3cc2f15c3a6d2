package pgstore_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/propaudit/internal/audit"
	"github.com/temirov/propaudit/internal/keyscan"
	"github.com/temirov/propaudit/internal/pgstore"
)

const testDSNEnvironmentVariable = "PROPAUDIT_TEST_POSTGRES_DSN"

const testUnreachableDSN = "postgres://auditor@127.0.0.1:1/propaudit?connect_timeout=1&sslmode=disable"

func openTestStore(testInstance *testing.T, options ...pgstore.StoreOption) *pgstore.Store {
	testInstance.Helper()
	dsn := strings.TrimSpace(os.Getenv(testDSNEnvironmentVariable))
	if len(dsn) == 0 {
		testInstance.Skipf("%s not set", testDSNEnvironmentVariable)
	}
	store, openError := pgstore.Open(context.Background(), dsn, options...)
	require.NoError(testInstance, openError)
	testInstance.Cleanup(func() {
		_ = store.Close()
	})
	require.NoError(testInstance, store.EnsureSchema(context.Background()))
	return store
}

func uniqueProject(testInstance *testing.T) audit.Project {
	root := fmt.Sprintf("/propaudit-test/%s/%d", testInstance.Name(), time.Now().UnixNano())
	return audit.Project{Name: "pgstore", Root: root}
}

func TestOpenRequiresDSN(testInstance *testing.T) {
	_, openError := pgstore.Open(context.Background(), "  ")
	require.ErrorIs(testInstance, openError, pgstore.ErrDSNRequired)

	_, storeError := pgstore.NewStore(nil)
	require.ErrorIs(testInstance, storeError, pgstore.ErrDatabaseRequired)
}

func TestFindingSinkRoundTrip(testInstance *testing.T) {
	store := openTestStore(testInstance)
	project := uniqueProject(testInstance)
	sink := store.FindingSink()

	missing := audit.NewMissingKeyFinding(keyscan.KeyLocation{Key: "view", File: project.ManifestReference(), CharStart: 5, CharEnd: 10, Line: 1, Column: 6})
	unused := audit.NewUnusedKeyFinding(keyscan.KeyLocation{Key: "stale", File: project.ResourceReference(), CharStart: 0, CharEnd: 5, Line: 2, Column: 1})
	require.NoError(testInstance, sink.Report(context.Background(), missing))
	require.NoError(testInstance, sink.Report(context.Background(), unused))

	stored, listError := sink.Findings(context.Background(), audit.OwnerIdentifier, project)
	require.NoError(testInstance, listError)
	require.Equal(testInstance, []audit.Finding{unused, missing}, stored)

	require.NoError(testInstance, sink.ClearAll(context.Background(), audit.OwnerIdentifier, project))
	stored, listError = sink.Findings(context.Background(), audit.OwnerIdentifier, project)
	require.NoError(testInstance, listError)
	require.Empty(testInstance, stored)
}

func TestRegistryIsIdempotent(testInstance *testing.T) {
	store := openTestStore(testInstance)
	project := uniqueProject(testInstance)
	registry := store.Registry()

	registered, statusError := registry.IsRegistered(context.Background(), project)
	require.NoError(testInstance, statusError)
	require.False(testInstance, registered)

	require.NoError(testInstance, registry.Register(context.Background(), project))
	require.NoError(testInstance, registry.Register(context.Background(), project))
	registered, statusError = registry.IsRegistered(context.Background(), project)
	require.NoError(testInstance, statusError)
	require.True(testInstance, registered)

	require.NoError(testInstance, registry.Unregister(context.Background(), project))
	require.NoError(testInstance, registry.Unregister(context.Background(), project))
	registered, statusError = registry.IsRegistered(context.Background(), project)
	require.NoError(testInstance, statusError)
	require.False(testInstance, registered)
}

func TestEnsureSchemaRetriesAfterFailure(testInstance *testing.T) {
	db, openError := sql.Open("pgx", testUnreachableDSN)
	require.NoError(testInstance, openError)
	testInstance.Cleanup(func() {
		_ = db.Close()
	})
	store, storeError := pgstore.NewStore(db)
	require.NoError(testInstance, storeError)

	canceledContext, cancel := context.WithCancel(context.Background())
	cancel()
	firstError := store.EnsureSchema(canceledContext)
	require.ErrorIs(testInstance, firstError, context.Canceled)

	retryContext, retryCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer retryCancel()
	secondError := store.EnsureSchema(retryContext)
	require.Error(testInstance, secondError)
	require.False(testInstance, errors.Is(secondError, context.Canceled))
}

func TestRegistryObservesRegistrationsFromAnotherStore(testInstance *testing.T) {
	watchingStore := openTestStore(testInstance, pgstore.WithRegistrationCacheTTL(50*time.Millisecond))
	registeringStore := openTestStore(testInstance)
	project := uniqueProject(testInstance)

	registered, statusError := watchingStore.Registry().IsRegistered(context.Background(), project)
	require.NoError(testInstance, statusError)
	require.False(testInstance, registered)

	require.NoError(testInstance, registeringStore.Registry().Register(context.Background(), project))
	require.Eventually(testInstance, func() bool {
		registered, statusError := watchingStore.Registry().IsRegistered(context.Background(), project)
		return statusError == nil && registered
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(testInstance, registeringStore.Registry().Unregister(context.Background(), project))
	require.Eventually(testInstance, func() bool {
		registered, statusError := watchingStore.Registry().IsRegistered(context.Background(), project)
		return statusError == nil && !registered
	}, 2*time.Second, 20*time.Millisecond)
}

func TestRegistryWithoutCacheReadsThrough(testInstance *testing.T) {
	watchingStore := openTestStore(testInstance, pgstore.WithRegistrationCacheTTL(0))
	registeringStore := openTestStore(testInstance)
	project := uniqueProject(testInstance)

	registered, statusError := watchingStore.Registry().IsRegistered(context.Background(), project)
	require.NoError(testInstance, statusError)
	require.False(testInstance, registered)

	require.NoError(testInstance, registeringStore.Registry().Register(context.Background(), project))
	registered, statusError = watchingStore.Registry().IsRegistered(context.Background(), project)
	require.NoError(testInstance, statusError)
	require.True(testInstance, registered)
}
