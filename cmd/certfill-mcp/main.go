// Command certfill-mcp is an MCP (Model Context Protocol) server that lets
// AI assistants fill certificate templates with names.
//
// # Installation
//
//	go install github.com/lvillar/certfill/cmd/certfill-mcp@latest
//
// # Configuration for Claude Desktop
//
// Add to ~/.config/claude/claude_desktop_config.json:
//
//	{
//	  "mcpServers": {
//	    "certfill": {
//	      "command": "certfill-mcp",
//	      "args": ["-fonts", "helvetica-bold,times-bold"]
//	    }
//	  }
//	}
//
// # Available Tools
//
//   - fill_certificate: Write a name over a template's placeholder
//   - batch_certificates: Fill one certificate per name tuple
//   - find_placeholders: Locate the placeholders of a template
//   - list_form_fields: List AcroForm fields and the name candidates
//   - merge_pdfs: Merge certificates into one file
//
// # Available Resources
//
//   - pdf://pages?path=... : Page sizes and metadata
//   - pdf://placeholders?path=... : Placeholder instances
//   - pdf://form-fields?path=... : Form fields
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/lvillar/certfill"
	"github.com/lvillar/certfill/mcp"
)

func main() {
	fonts := flag.String("fonts", "", "comma-separated font candidates, e.g. helvetica-bold,times-bold")
	tokens := flag.String("tokens", "", "comma-separated placeholder tokens")
	flag.Parse()

	// stdout carries the protocol
	logger := log.New(os.Stderr, "", log.LstdFlags)
	opts := []certfill.Option{certfill.WithLogger(logger)}
	if *fonts != "" {
		opts = append(opts, certfill.WithFonts(strings.Split(*fonts, ",")...))
	}
	if *tokens != "" {
		opts = append(opts, certfill.WithTokens(strings.Split(*tokens, ",")...))
	}
	ed, err := certfill.New(opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "certfill-mcp: %v\n", err)
		os.Exit(2)
	}

	server := mcp.NewServer()
	server.SetLogger(logger)
	mcp.RegisterDefaultTools(server, ed)
	mcp.RegisterDefaultResources(server, ed)

	if err := server.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "certfill-mcp: %v\n", err)
		os.Exit(1)
	}
}
