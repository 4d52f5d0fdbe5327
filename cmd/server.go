/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/nexusworks/payments/api"
)

// serverCommands defines the "start" command that runs the HTTP API.
func serverCommands(b *appInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "start the payments API server",
		Run: func(cmd *cobra.Command, args []string) {
			a, err := api.NewAPI(b.engine)
			if err != nil {
				log.Fatalf("Error setting up API server: %v", err)
			}
			router := a.Router()
			port := b.cnf.Server.Port
			log.Printf("Starting server on http://localhost:%s", port)
			if err := router.Run(":" + port); err != nil {
				log.Fatal(err)
			}
		},
	}
	return cmd
}
