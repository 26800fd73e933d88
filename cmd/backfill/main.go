// Command backfill moves pre-tenancy data into tenants: it provisions a
// company for every user without one, then links customers, recordings,
// reports and sales rooms to their owner's tenant.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(connectDB, os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
