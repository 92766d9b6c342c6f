package inmemory_test

import (
	"github.com/papercomputeco/agentconsole/pkg/storage"
	"github.com/papercomputeco/agentconsole/pkg/storage/inmemory"
	"github.com/papercomputeco/agentconsole/pkg/storage/storagetest"
)

var _ = storagetest.DescribeDriver(func() storage.Driver {
	return inmemory.NewDriver()
})
