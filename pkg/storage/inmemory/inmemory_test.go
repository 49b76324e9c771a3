package inmemory_test

import (
	. "github.com/onsi/ginkgo/v2"

	"github.com/papercomputeco/recall/pkg/storage"
	"github.com/papercomputeco/recall/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/recall/pkg/utils/test"
)

var _ = Describe("Driver", func() {
	testutils.DescribeStorageDriver(func() storage.Driver {
		return inmemory.NewDriver()
	})
})
