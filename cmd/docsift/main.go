package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/docsift/docsift/docsift"
)

// kvArgs is a custom flag type for repeatable -f key=value flags
type kvArgs []string

func (s *kvArgs) String() string { return strings.Join(*s, ",") }
func (s *kvArgs) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	ctx := context.Background()

	switch command {
	case "search":
		handleSearch(ctx, os.Args[2:])
	case "count":
		handleCount(ctx, os.Args[2:])
	case "get":
		handleGet(ctx, os.Args[2:])
	case "schema":
		handleSchema(os.Args[2:])
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("docsift - filter compiler and search client for JSONB document tables")
	fmt.Println("\nUsage:")
	fmt.Println("  docsift search --dsn <dsn> --schema <schema.json> [-f key=value]... [--raw <jsonpath>] [--explain] [--format pretty|json]")
	fmt.Println("  docsift count  --dsn <dsn> --schema <schema.json> [-f key=value]...")
	fmt.Println("  docsift get    --dsn <dsn> --schema <schema.json> --id <uuid> [--id <uuid>]... [--format pretty|json]")
	fmt.Println("  docsift schema --schema <schema.json>")
	fmt.Println("\nFilters use the schema's field keys, e.g. -f year_min=2000 -f genre=comedy.")
	fmt.Println("Reserved keys: sortby, sortorder, limit, offset.")
}

func loadSchema(path string) docsift.Schema {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("Error reading schema file: %v\n", err)
		os.Exit(1)
	}
	schema, err := docsift.SchemaFromJSON(data)
	if err != nil {
		fmt.Printf("Error parsing schema: %v\n", err)
		os.Exit(1)
	}
	return schema
}

func openStore(ctx context.Context, dsn, schemaFile string) *docsift.Store {
	if dsn == "" || schemaFile == "" {
		fmt.Println("Both --dsn and --schema are required")
		os.Exit(1)
	}
	st, err := docsift.Open(ctx, dsn, loadSchema(schemaFile))
	if err != nil {
		fmt.Printf("Error opening store: %v\n", err)
		os.Exit(1)
	}
	return st
}

func parseFilters(kvs kvArgs) map[string]string {
	fields := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			fmt.Printf("Invalid -f %q (expected key=value)\n", kv)
			os.Exit(1)
		}
		fields[key] = value
	}
	return fields
}

func printDocs(docs []map[string]any, format string) {
	if format == "json" {
		out, _ := json.Marshal(docs)
		fmt.Println(string(out))
		return
	}
	for _, doc := range docs {
		pretty, _ := json.MarshalIndent(doc, "", "  ")
		fmt.Println(string(pretty))
	}
	fmt.Printf("\n--- %d results ---\n", len(docs))
}

func handleSearch(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	dsn := fs.String("dsn", "", "postgres DSN (required)")
	schemaFile := fs.String("schema", "", "schema JSON file (required)")
	rawPath := fs.String("raw", "", "pre-built jsonpath expression overriding the compiled one")
	explain := fs.Bool("explain", false, "show the query plan instead of results")
	format := fs.String("format", "pretty", "output format: pretty or json")

	var filters kvArgs
	fs.Var(&filters, "f", "filter key=value (repeatable)")

	fs.Parse(args)

	st := openStore(ctx, *dsn, *schemaFile)
	defer st.Close()

	fields := parseFilters(filters)

	if *explain {
		plan, err := st.Explain(ctx, fields)
		if err != nil {
			fmt.Printf("Error explaining search: %v\n", err)
			os.Exit(1)
		}
		fmt.Print(plan)
		return
	}

	docs, err := st.Search(ctx, fields, *rawPath)
	if err != nil {
		fmt.Printf("Error searching: %v\n", err)
		os.Exit(1)
	}
	printDocs(docs, *format)
}

func handleCount(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("count", flag.ExitOnError)
	dsn := fs.String("dsn", "", "postgres DSN (required)")
	schemaFile := fs.String("schema", "", "schema JSON file (required)")

	var filters kvArgs
	fs.Var(&filters, "f", "filter key=value (repeatable)")

	fs.Parse(args)

	st := openStore(ctx, *dsn, *schemaFile)
	defer st.Close()

	n, err := st.Count(ctx, parseFilters(filters))
	if err != nil {
		fmt.Printf("Error counting: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(n)
}

func handleGet(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	dsn := fs.String("dsn", "", "postgres DSN (required)")
	schemaFile := fs.String("schema", "", "schema JSON file (required)")
	format := fs.String("format", "pretty", "output format: pretty or json")

	var rawIDs kvArgs
	fs.Var(&rawIDs, "id", "document id (repeatable)")

	fs.Parse(args)

	if len(rawIDs) == 0 {
		fmt.Println("At least one --id is required")
		os.Exit(1)
	}

	ids := make([]uuid.UUID, 0, len(rawIDs))
	for _, raw := range rawIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			fmt.Printf("Invalid id %q: %v\n", raw, err)
			os.Exit(1)
		}
		ids = append(ids, id)
	}

	st := openStore(ctx, *dsn, *schemaFile)
	defer st.Close()

	docs, err := st.GetByIDs(ctx, ids)
	if err != nil {
		fmt.Printf("Error fetching documents: %v\n", err)
		os.Exit(1)
	}
	printDocs(docs, *format)
}

func handleSchema(args []string) {
	fs := flag.NewFlagSet("schema", flag.ExitOnError)
	schemaFile := fs.String("schema", "", "schema JSON file (required)")
	fs.Parse(args)

	if *schemaFile == "" {
		fs.Usage()
		os.Exit(1)
	}

	schema := loadSchema(*schemaFile)
	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		fmt.Printf("Error encoding schema: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
