// Copyright 2025 AI Gateway Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Seeds the local service desk ticket store with sample incidents so
// demo sessions have status lookups to answer. Usage:
//
//	go run scripts/seed-tickets.go [path/to/tickets.db]
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/your-org/ai-gateway/internal/connector/servicedesk"
)

type seedTicket struct {
	Title     string
	Body      string
	Severity  string
	Requester string
}

var seedTickets = []seedTicket{
	{
		Title:     "VPN drops every 30 minutes",
		Body:      "Corporate VPN disconnects repeatedly on the office wifi.",
		Severity:  "2",
		Requester: "demo-user-1",
	},
	{
		Title:     "Cannot access shared drive",
		Body:      "Access denied on the finance shared drive since this morning.",
		Severity:  "3",
		Requester: "demo-user-2",
	},
	{
		Title:     "Laptop battery swollen",
		Body:      "Hardware replacement needed, battery is visibly swollen.",
		Severity:  "1",
		Requester: "demo-user-3",
	},
	{
		Title:     "Meeting room display flickers",
		Body:      "The display in room 4B flickers when screen sharing starts.",
		Severity:  "4",
		Requester: "demo-user-4",
	},
}

func main() {
	dbPath := "./tickets.db"
	if len(os.Args) > 1 {
		dbPath = os.Args[1]
	}

	desk, err := servicedesk.NewLocalDesk(dbPath)
	if err != nil {
		log.Fatalf("failed to open ticket store at %s: %v", dbPath, err)
	}
	defer func() { _ = desk.Close() }()

	ctx := context.Background()
	for _, seed := range seedTickets {
		ticket, err := desk.CreateTicket(ctx, seed.Title, seed.Body, seed.Severity, seed.Requester)
		if err != nil {
			log.Fatalf("failed to seed ticket %q: %v", seed.Title, err)
		}
		fmt.Printf("created %s  [sev %s]  %s\n", ticket.ID, ticket.Severity, ticket.Summary)
	}

	fmt.Printf("\nSeeded %d tickets into %s\n", len(seedTickets), dbPath)
	fmt.Println("Set gateway.ticket_store_path to this file to enable the local-desk provider.")
}
