package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"tablerepo/internal/config"
	"tablerepo/internal/dbexec"
	"tablerepo/internal/planner"
	"tablerepo/internal/query"
	"tablerepo/internal/repository"
	"tablerepo/internal/uuidutil"

	"github.com/spf13/pflag"
)

type operation string

const (
	opFind    operation = "find"
	opPage    operation = "page"
	opCount   operation = "count"
	opFindOne operation = "find-one"
	opCreate  operation = "create"
	opUpdate  operation = "update"
	opDelete  operation = "delete"
	opAppend  operation = "append"
)

var operations = map[operation]bool{
	opFind: true, opPage: true, opCount: true, opFindOne: true,
	opCreate: true, opUpdate: true, opDelete: true, opAppend: true,
}

var (
	errUsage    = errors.New("usage")
	errNotFound = errors.New("not found")
)

func operationList() string {
	names := make([]string, 0, len(operations))
	for op := range operations {
		names = append(names, string(op))
	}
	sort.Strings(names)
	return strings.Join(names, "|")
}

func parseOperation(args []string) (operation, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%w: expected exactly one operation", errUsage)
	}
	op := operation(args[0])
	if !operations[op] {
		return "", fmt.Errorf("%w: unknown operation %q", errUsage, args[0])
	}
	return op, nil
}

func defineCommandFlags(flags *pflag.FlagSet) {
	flags.String("table", "", "Configured table to operate on")
	flags.String("params", "", "Query parameters as JSON (@file or @- to read)")
	flags.String("string-filters", "", "Comma-joined JSON filter objects")
	flags.String("string-order-bys", "", "Comma-joined JSON sort objects")
	flags.String("offset", "", "Rows to skip")
	flags.String("page-size", "", "Maximum rows to return")
	flags.StringSlice("fields", nil, "Columns to select (default: table's selectable columns)")
	flags.String("id", "", "Primary key value")
	flags.String("data", "", "JSON object of column values, or delete keys (@file or @- to read)")
	flags.String("field", "", "Column to append to")
	flags.String("value", "", "Value to append (parsed as JSON when possible)")
	flags.String("type", "", "Element type of the array column, e.g. text or integer")
	flags.Bool("scalar", false, "Overwrite a scalar column instead of appending")
	flags.String("as-role", "", "Run the statement as this role (must be listed in database.allowed_roles)")
}

// input is the parsed request for one operation.
type input struct {
	table  string
	role   string
	params query.Parameters
	fields []string
	id     any
	data   map[string]any
	append planner.AppendSpec
}

func parseInput(op operation, flags *pflag.FlagSet) (input, error) {
	var in input
	in.table, _ = flags.GetString("table")
	if strings.TrimSpace(in.table) == "" {
		return input{}, fmt.Errorf("%w: --table is required", repository.ErrValidation)
	}
	in.fields, _ = flags.GetStringSlice("fields")
	in.role, _ = flags.GetString("as-role")

	paramsArg, _ := flags.GetString("params")
	dataArg, _ := flags.GetString("data")
	passwordFile, _ := flags.GetString("database.password_file")
	if err := config.CheckSingleStdinSource(map[string]string{
		"database.password_file": passwordFile,
		"params":                 stdinPath(paramsArg),
		"data":                   stdinPath(dataArg),
	}); err != nil {
		return input{}, fmt.Errorf("%w: %w", repository.ErrValidation, err)
	}

	switch op {
	case opFind, opPage, opCount:
		params, err := parseParams(flags, paramsArg)
		if err != nil {
			return input{}, fmt.Errorf("%w: %w", repository.ErrValidation, err)
		}
		in.params = params
	case opFindOne:
		if err := requireID(flags, &in); err != nil {
			return input{}, err
		}
	case opCreate:
		data, err := parseData(dataArg)
		if err != nil {
			return input{}, err
		}
		in.data = data
	case opUpdate:
		if err := requireID(flags, &in); err != nil {
			return input{}, err
		}
		data, err := parseData(dataArg)
		if err != nil {
			return input{}, err
		}
		in.data = data
	case opDelete:
		if dataArg != "" {
			data, err := parseData(dataArg)
			if err != nil {
				return input{}, err
			}
			in.data = data
		} else if err := requireID(flags, &in); err != nil {
			return input{}, err
		}
	case opAppend:
		if err := requireID(flags, &in); err != nil {
			return input{}, err
		}
		field, _ := flags.GetString("field")
		rawValue, _ := flags.GetString("value")
		typ, _ := flags.GetString("type")
		scalar, _ := flags.GetBool("scalar")
		in.append = planner.AppendSpec{Field: field, Value: parseScalar(rawValue), Type: typ, Scalar: scalar}
	}
	return in, nil
}

// scopeRole attaches the requested role to ctx for the scoped executor.
func scopeRole(ctx context.Context, db *config.DatabaseConfig, role string) (context.Context, error) {
	if role == "" {
		return ctx, nil
	}
	if !db.AllowsRole(role) {
		return ctx, fmt.Errorf("%w: role %q is not listed in database.allowed_roles", repository.ErrPermission, role)
	}
	return dbexec.WithRole(ctx, role), nil
}

func stdinPath(arg string) string {
	if arg == "@-" {
		return config.StdinSource
	}
	return ""
}

// readArg resolves "@path" and "@-" to file or stdin contents.
func readArg(arg string) (string, error) {
	if !strings.HasPrefix(arg, "@") {
		return arg, nil
	}
	path := arg[1:]
	if path == "-" {
		path = config.StdinSource
	}
	return config.ReadSource(path)
}

func parseParams(flags *pflag.FlagSet, paramsArg string) (query.Parameters, error) {
	if paramsArg != "" {
		raw, err := readArg(paramsArg)
		if err != nil {
			return query.Parameters{}, err
		}
		return query.Parse([]byte(raw))
	}

	values := url.Values{}
	for flag, key := range map[string]string{
		"offset":           "offset",
		"page-size":        "page_size",
		"string-filters":   "string_filters",
		"string-order-bys": "string_order_bys",
	} {
		if v, _ := flags.GetString(flag); v != "" {
			values.Set(key, v)
		}
	}
	return query.ParseValues(values)
}

func parseData(arg string) (map[string]any, error) {
	if arg == "" {
		return nil, fmt.Errorf("%w: --data is required", repository.ErrValidation)
	}
	raw, err := readArg(arg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", repository.ErrValidation, err)
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: --data must be a JSON object: %v", repository.ErrValidation, err)
	}
	if data == nil {
		return nil, fmt.Errorf("%w: --data must be a JSON object", repository.ErrValidation)
	}
	return data, nil
}

func requireID(flags *pflag.FlagSet, in *input) error {
	raw, _ := flags.GetString("id")
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%w: --id is required", repository.ErrValidation)
	}
	in.id = parseID(raw)
	return nil
}

// parseID binds integral ids as int64, UUIDs in canonical form and
// everything else as text.
func parseID(raw string) any {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if id, ok := uuidutil.Canonical(raw); ok {
		return id
	}
	return raw
}

// parseScalar decodes JSON literals and falls back to the raw text.
func parseScalar(raw string) any {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return raw
	}
	return v
}

// source hands out repositories by table name.
type source interface {
	Reader(table string) (repository.Reader, error)
	Writer(table string) (repository.Writer, error)
}

// response is the outcome of one operation before rendering.
type response struct {
	body     envelope
	notFound bool
}

func execute(ctx context.Context, src source, op operation, in input) (response, error) {
	switch op {
	case opFind, opPage, opCount, opFindOne:
		reader, err := src.Reader(in.table)
		if err != nil {
			return response{}, err
		}
		return executeRead(ctx, reader, op, in)
	default:
		writer, err := src.Writer(in.table)
		if err != nil {
			return response{}, err
		}
		return executeWrite(ctx, writer, op, in)
	}
}

func executeRead(ctx context.Context, reader repository.Reader, op operation, in input) (response, error) {
	switch op {
	case opFind:
		records, err := reader.Find(ctx, in.params, in.fields...)
		if err != nil {
			return response{}, err
		}
		return response{body: envelope{Data: records}}, nil
	case opPage:
		page, err := reader.FindPage(ctx, in.params, in.fields...)
		if err != nil {
			return response{}, err
		}
		return response{body: envelope{Data: page.Data, Metadata: &page.Metadata}}, nil
	case opCount:
		n, err := reader.Count(ctx, in.params)
		if err != nil {
			return response{}, err
		}
		return response{body: envelope{Data: n}}, nil
	default:
		record, ok, err := reader.FindOne(ctx, in.id, in.fields...)
		return recordResponse(record, ok, err)
	}
}

func executeWrite(ctx context.Context, writer repository.Writer, op operation, in input) (response, error) {
	switch op {
	case opCreate:
		record, err := writer.Create(ctx, in.data)
		if err != nil {
			return response{}, err
		}
		return response{body: envelope{Data: record}}, nil
	case opUpdate:
		record, ok, err := writer.Update(ctx, in.id, in.data)
		return recordResponse(record, ok, err)
	case opDelete:
		keys := in.data
		if keys == nil {
			keys = map[string]any{writer.PrimaryKey(): in.id}
		}
		n, err := writer.Delete(ctx, keys)
		if err != nil {
			return response{}, err
		}
		return response{body: envelope{Data: map[string]int64{"deleted": n}}}, nil
	case opAppend:
		record, ok, err := writer.AppendToField(ctx, in.id, in.append)
		return recordResponse(record, ok, err)
	default:
		return response{}, fmt.Errorf("%w: unknown operation %q", errUsage, op)
	}
}

func recordResponse(record repository.Record, ok bool, err error) (response, error) {
	if err != nil {
		return response{}, err
	}
	if !ok {
		return response{body: envelope{Data: notFoundMessage}, notFound: true}, nil
	}
	return response{body: envelope{Data: record}}, nil
}
