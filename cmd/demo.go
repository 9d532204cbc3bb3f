package cmd

import (
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/jhaber/guice/framework/app"
	"github.com/jhaber/guice/framework/container"
)

var demoCollect bool

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Show a child binding shadowing the root, then disappearing",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDemo(cmd.OutOrStdout(), demoCollect)
	},
}

func init() {
	demoCmd.Flags().BoolVar(&demoCollect, "gc", false, "drop the child and wait for the garbage collector instead of closing it")
}

// requestProvider binds a per-scope value.
type requestProvider struct {
	container.BaseProvider
}

func (p *requestProvider) Register(c *container.Container) {
	c.Instance("request", "GET /")
}

func runDemo(w io.Writer, collect bool) error {
	application := app.New(envFiles...)
	application.Boot()

	report := func(stage string) {
		r := application.Shadow("request")
		fmt.Fprintf(w, "%-8s shadowed=%t sources=%v\n", stage, r.Shadowed, r.Sources)
	}

	report("before")
	scope := application.Scope(&requestProvider{})
	report("bound")

	if !collect {
		scope.Close()
		report("closed")
		return nil
	}

	runtime.KeepAlive(scope)
	deadline := time.Now().Add(5 * time.Second)
	for application.Shadowed("request") {
		if time.Now().After(deadline) {
			return fmt.Errorf("child container was not collected within 5s")
		}
		runtime.GC()
		time.Sleep(10 * time.Millisecond)
	}
	report("dropped")
	return nil
}
