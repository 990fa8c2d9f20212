// Command check-alerts evaluates every active alert rule once. Run it from cron.
package main

import "github.com/ogulcanaydogan/finalert/internal/cli"

func main() {
	cli.ExecuteCheck()
}
