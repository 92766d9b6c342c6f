package postgres_test

import (
	"context"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/agentconsole/pkg/storage"
	"github.com/papercomputeco/agentconsole/pkg/storage/postgres"
	"github.com/papercomputeco/agentconsole/pkg/storage/sqlstore"
	"github.com/papercomputeco/agentconsole/pkg/storage/storagetest"
)

// connStr returns the PostgreSQL connection string from environment or skips the test.
func connStr() string {
	dsn := os.Getenv("AGENTCONSOLE_TEST_POSTGRES_DSN")
	if dsn == "" {
		Skip("AGENTCONSOLE_TEST_POSTGRES_DSN not set, skipping PostgreSQL tests")
	}
	return dsn
}

var _ = storagetest.DescribeDriver(func() storage.Driver {
	ctx := context.Background()

	driver, err := postgres.NewDriver(ctx, connStr(), sqlstore.WithClock(storagetest.SteppingClock()))
	Expect(err).NotTo(HaveOccurred())

	// Clean all sessions before each test for isolation.
	_, err = driver.DB.ExecContext(ctx, "DELETE FROM messages")
	Expect(err).NotTo(HaveOccurred())
	_, err = driver.DB.ExecContext(ctx, "DELETE FROM sessions")
	Expect(err).NotTo(HaveOccurred())

	return driver
})

var _ = Describe("NewDriver", func() {
	It("fails when the server is unreachable", func() {
		_, err := postgres.NewDriver(context.Background(), "postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1")
		Expect(err).To(MatchError(ContainSubstring("failed to ping database")))
	})
})
