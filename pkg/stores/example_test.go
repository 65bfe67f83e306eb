package stores_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/uirecorder/teststore/pkg/stores"
	"github.com/uirecorder/teststore/pkg/testmodel"
)

// Example demonstrates writing a recorded test and reading it back.
func Example() {
	dir, err := os.MkdirTemp("", "teststore-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	ctx := context.Background()
	store, err := stores.Open(ctx, stores.Config{Path: filepath.Join(dir, "tests.db")})
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	version, err := store.WriteTest(ctx, "default", testmodel.Test{
		Name:   "login",
		Active: true,
		Steps: []testmodel.TestStep{
			{ID: "tap", Image: []byte("screenshot"), Values: map[string]any{"testableId": "login_button"}},
		},
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("stored version:", version)

	pending, err := store.ReadTests(ctx, "default")
	if err != nil {
		log.Fatal(err)
	}
	for _, p := range pending {
		fmt.Printf("%s v%d image=%d bytes\n", p.Name(), p.Test.Version, len(p.Test.Steps[0].Image))
	}

	// Output:
	// stored version: 1
	// login v1 image=0 bytes
}

// ExampleSQLiteStore_ListReports demonstrates listing reports newest first.
func ExampleSQLiteStore_ListReports() {
	ctx := context.Background()
	store, err := stores.Open(ctx, stores.Config{Path: ":memory:"})
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	for i, name := range []string{"first", "second", "third"} {
		start := base.Add(time.Duration(i) * time.Hour)
		_, err := store.SubmitReport(ctx, "default", testmodel.Report{
			Name:      name,
			StartTime: start,
			EndTime:   start.Add(time.Minute),
			Success:   true,
		})
		if err != nil {
			log.Fatal(err)
		}
	}

	reports, err := store.ListReports(ctx, "default", 2, 0)
	if err != nil {
		log.Fatal(err)
	}
	for _, r := range reports {
		fmt.Println(r.Name)
	}

	// Output:
	// third
	// second
}

// ExampleAdapter demonstrates plugging the store into a runner that only
// understands success flags.
func ExampleAdapter() {
	ctx := context.Background()
	store, err := stores.Open(ctx, stores.Config{Path: ":memory:"})
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	adapter := stores.NewAdapter(store, "", nil)
	ok := adapter.WriteTest(testmodel.WithOwner(ctx, "pixel-7"), testmodel.Test{Name: "checkout"})
	fmt.Println("written:", ok)
	fmt.Println("pending for pixel-7:", len(adapter.ReadTests(testmodel.WithOwner(ctx, "pixel-7"))))
	fmt.Println("pending for default:", len(adapter.ReadTests(ctx)))

	// Output:
	// written: true
	// pending for pixel-7: 1
	// pending for default: 0
}
