// Command server is the trustdirectory entrypoint: it wires the facility
// repository, connectors, search/vote services, and HTTP router behind a
// small cobra CLI (section 6 process modes).
package main

import (
	"github.com/Togather-Foundation/trustdirectory/cmd/server/cmd"
)

func main() {
	cmd.Execute()
}
