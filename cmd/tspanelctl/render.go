package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"go4.org/netipx"

	"github.com/coreyleavitt/tailscale-openwrt/src/admin"
)

func newTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t") // pad with tabs
	table.SetNoWhiteSpace(true)
	table.SetAutoWrapText(false)
	return table
}

func enabledWord(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// render pretty-prints the response to the named request.
func render(w io.Writer, name string, response json.RawMessage, verbose bool) error {
	table := newTable(w)

	switch strings.ToLower(name) {
	case "list":
		var resp admin.ListResponse
		if err := json.Unmarshal(response, &resp); err != nil {
			return err
		}
		table.SetHeader([]string{"Command", "Arguments", "Description"})
		for _, entry := range resp.List {
			for i := range entry.Fields {
				entry.Fields[i] = entry.Fields[i] + "=..."
			}
			table.Append([]string{entry.Command, strings.Join(entry.Fields, ", "), entry.Description})
		}
		table.Render()

	case "getstate", "poll", "setkillswitch", "setexitnode", "setacceptroutes",
		"toggleacceptroutes", "setadvertiseroutes", "setssh", "togglessh":
		var resp admin.GetStateResponse
		if err := json.Unmarshal(response, &resp); err != nil {
			return err
		}
		connected := "Disconnected"
		if resp.Status.Connected {
			connected = "Connected"
		}
		table.Append([]string{"Build name:", resp.BuildName})
		table.Append([]string{"Build version:", resp.BuildVersion})
		table.Append([]string{"Tailscale status:", connected})
		table.Append([]string{"Tailscale version:", resp.Status.DisplayVersion()})
		table.Append([]string{"Killswitch:", enabledWord(resp.KillswitchEnabled)})
		table.Append([]string{"Exit node:", resp.CurrentExitNode})
		table.Append([]string{"Accept routes:", enabledWord(resp.Status.AcceptRoutes)})
		table.Append([]string{"Advertised routes:", resp.Status.AdvertiseRoutes})
		table.Append([]string{"SSH:", enabledWord(resp.Status.SSH)})
		if !resp.LastPoll.IsZero() {
			table.Append([]string{"Last poll:", resp.LastPoll.Format(time.RFC3339)})
		}
		if resp.PollError != "" {
			table.Append([]string{"Poll error:", resp.PollError})
		}
		if verbose {
			var busy []string
			for control, b := range resp.Busy {
				if b {
					busy = append(busy, string(control))
				}
			}
			sort.Strings(busy)
			table.Append([]string{"Busy controls:", strings.Join(busy, ", ")})
			table.Append([]string{"Generation:", fmt.Sprintf("%d", resp.Generation)})
		}
		table.Render()
		if verbose && len(resp.Notifications) > 0 {
			fmt.Fprintln(w)
			notes := newTable(w)
			notes.SetHeader([]string{"Time", "Kind", "Message"})
			for _, n := range resp.Notifications {
				notes.Append([]string{n.Time.Format(time.TimeOnly), string(n.Kind), n.Message})
			}
			notes.Render()
		}

	case "getexitnodes":
		var resp admin.GetExitNodesResponse
		if err := json.Unmarshal(response, &resp); err != nil {
			return err
		}
		table.SetHeader([]string{"Exit Node", "State"})
		table.Append([]string{"none", exitNodeState("none", resp)})
		for _, node := range resp.ExitNodes {
			table.Append([]string{node, exitNodeState(node, resp)})
		}
		table.Render()

	case "getroutes":
		var resp admin.GetRoutesResponse
		if err := json.Unmarshal(response, &resp); err != nil {
			return err
		}
		table.SetHeader([]string{"Prefix", "Addresses"})
		for _, prefix := range resp.Prefixes {
			table.Append([]string{prefix.String(), netipx.RangeOfPrefix(prefix).String()})
		}
		table.Render()
		if verbose {
			fmt.Fprintln(w)
			merged := newTable(w)
			merged.SetHeader([]string{"Merged Range"})
			for _, r := range resp.Ranges {
				merged.Append([]string{r.String()})
			}
			merged.Render()
		}

	case "getinterface":
		var resp admin.GetInterfaceResponse
		if err := json.Unmarshal(response, &resp); err != nil {
			return err
		}
		table.Append([]string{"Protocol:", fmt.Sprintf("%s (%s)", resp.Protocol.Name, resp.Protocol.I18n)})
		table.Append([]string{"Package:", resp.Protocol.OpkgPackage})
		table.Append([]string{"Interface:", resp.Link.Name})
		table.Append([]string{"Managed:", fmt.Sprintf("%t", resp.Managed)})
		table.Append([]string{"Present:", fmt.Sprintf("%t", resp.Link.Present)})
		if resp.Link.Present {
			table.Append([]string{"Up:", fmt.Sprintf("%t", resp.Link.Up)})
			table.Append([]string{"MTU:", fmt.Sprintf("%d", resp.Link.MTU)})
			for _, addr := range resp.Link.Addresses {
				table.Append([]string{"Address:", addr.String()})
			}
		}
		table.Render()

	case "getdetails":
		var resp admin.GetDetailsResponse
		if err := json.Unmarshal(response, &resp); err != nil {
			return err
		}
		fmt.Fprintln(w, resp.Details)

	default:
		fmt.Fprintln(w, string(response))
	}

	return nil
}

func exitNodeState(node string, resp admin.GetExitNodesResponse) string {
	var states []string
	if node == resp.Current {
		states = append(states, "current")
	}
	if node == resp.Selected && node != resp.Current {
		states = append(states, "selected")
	}
	return strings.Join(states, ", ")
}
