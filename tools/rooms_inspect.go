package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"

	"salachat/domain"
	"salachat/internal"
)

func main() {
	url := flag.String("url", "http://localhost:8081/inspect", "Debug inspect endpoint")
	flag.Parse()

	payload, err := fetch(*url)
	if err != nil {
		log.Fatal("Error while fetching inspect payload: ", err)
	}

	fmt.Printf("Snapshot at %s\n", payload.At.Format(time.TimeOnly))
	for k, v := range payload.Stats {
		fmt.Printf("  %s: %v\n", k, v)
	}
	fmt.Println()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Index", "Room", "Queue", "Members", "Users"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, room := range payload.Rooms {
		names := lo.Map(room.Members, func(m domain.Member, _ int) string {
			return fmt.Sprintf("%s(%d)", m.Name, m.PID)
		})
		table.Append([]string{
			fmt.Sprintf("%d", room.Index),
			room.Name,
			fmt.Sprintf("%d", room.Queue),
			fmt.Sprintf("%d", len(room.Members)),
			fmt.Sprintf("%v", names),
		})
	}

	table.Render()
}

func fetch(url string) (*internal.InspectPayload, error) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var payload internal.InspectPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	return &payload, nil
}
