// Copyright 2023-2024 daviszhen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command gtools is a thin demonstration adapter for the grouping
// engine: it stands in for the host analytics environment (spec.md
// §6), reading by-columns and value columns out of a Parquet file and
// printing a reduced group table. It does not implement the Stata
// command/syntax layer (collapse, egen, contract, distinct, levelsof,
// isid) — those remain external per spec.md §1.
package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	pqLocal "github.com/xitongsys/parquet-go-source/local"
	pqReader "github.com/xitongsys/parquet-go/reader"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gtools-go/gtools/pkg/column"
	"github.com/gtools-go/gtools/pkg/engine"
	"github.com/gtools-go/gtools/pkg/util"
)

type cliConfig struct {
	Workers             int  `toml:"workers"`
	CountingSortCeiling int  `toml:"counting_sort_ceiling"`
	Verbose             bool `toml:"verbose"`
}

var (
	cfgFile   string
	byCol     string
	valueCol  string
	inputPath string
	funcName  string
	pctile    float64
)

func main() {
	root := &cobra.Command{
		Use:   "gtools",
		Short: "group and aggregate columns from a Parquet file",
		RunE:  run,
	}
	root.Flags().StringVar(&cfgFile, "config", "", "optional TOML config file")
	root.Flags().StringVar(&inputPath, "input", "", "path to a Parquet file")
	root.Flags().StringVar(&byCol, "by", "", "by-column name (int64 column in the Parquet schema)")
	root.Flags().StringVar(&valueCol, "value", "", "value column name (float64 column in the Parquet schema)")
	root.Flags().StringVar(&funcName, "func", "sum", "aggregate function: sum, mean, sd, max, min, count, median, pctile")
	root.Flags().Float64Var(&pctile, "pctile", 50, "percentile value when --func=pctile")
	root.MarkFlagRequired("input")
	root.MarkFlagRequired("by")
	root.MarkFlagRequired("value")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cfgFile)

	log, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	util.SetLogger(log)

	by, values, err := loadParquetColumns(inputPath, byCol, valueCol)
	if err != nil {
		return err
	}

	opts := engine.Options{
		Workers:             cfg.Workers,
		CountingSortCeiling: cfg.CountingSortCeiling,
		Verbose:             cfg.Verbose,
	}
	ctx := engine.NewContext(opts, log)

	f, err := parseFunc(funcName, pctile)
	if err != nil {
		return err
	}

	req := &engine.Request{
		By:        column.Set{by},
		ValueCols: column.Set{values},
		Funcs:     []engine.Func{f},
	}
	res, gerr := engine.Run(ctx, req)
	if gerr != nil {
		return gerr
	}

	fmt.Println(engine.Explain(ctx, res))
	out := res.Outputs[values.Name][0]
	for g := 0; g < res.J; g++ {
		if out.Valid.RowIsValid(uint64(g)) {
			fmt.Printf("group %d: %v\n", g+1, out.Values[g])
		} else {
			fmt.Printf("group %d: .\n", g+1)
		}
	}
	return nil
}

func parseFunc(name string, p float64) (engine.Func, error) {
	switch name {
	case "sum":
		return engine.Func{Kind: engine.FuncSum}, nil
	case "mean":
		return engine.Func{Kind: engine.FuncMean}, nil
	case "sd":
		return engine.Func{Kind: engine.FuncSD}, nil
	case "max":
		return engine.Func{Kind: engine.FuncMax}, nil
	case "min":
		return engine.Func{Kind: engine.FuncMin}, nil
	case "count":
		return engine.Func{Kind: engine.FuncCount}, nil
	case "median":
		return engine.Func{Kind: engine.FuncMedian}, nil
	case "pctile":
		return engine.Func{Kind: engine.FuncPctile, Pctile: p}, nil
	default:
		return engine.Func{}, fmt.Errorf("unknown function %q", name)
	}
}

func loadConfig(path string) cliConfig {
	cfg := cliConfig{Workers: 4, CountingSortCeiling: 1 << 24}
	if path == "" || !util.FileIsValid(path) {
		return cfg
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		util.Error("config load failed", zap.String("path", path), zap.Error(err))
	}
	return cfg
}

// loadParquetColumns reads exactly one int64 by-column and one float64
// value column from a flat Parquet file, in the teacher's
// NewLocalFileReader + NewParquetColumnReader + ReadColumnByIndex
// pattern (pkg/plan/run.go).
func loadParquetColumns(path, byName, valueName string) (*column.Column, *column.Column, error) {
	pqFile, err := pqLocal.NewLocalFileReader(path)
	if err != nil {
		return nil, nil, err
	}
	defer pqFile.Close()

	reader, err := pqReader.NewParquetColumnReader(pqFile, 1)
	if err != nil {
		return nil, nil, err
	}
	defer reader.ReadStop()

	numRows := int(reader.GetNumRows())

	byIdx, valIdx, err := columnIndices(reader, byName, valueName)
	if err != nil {
		return nil, nil, err
	}

	byVals, _, _, err := reader.ReadColumnByIndex(int64(byIdx), int64(numRows))
	if err != nil {
		return nil, nil, err
	}
	valVals, _, _, err := reader.ReadColumnByIndex(int64(valIdx), int64(numRows))
	if err != nil {
		return nil, nil, err
	}

	by := &column.Column{Name: byName, Kind: column.KindInt64, Ints: make([]int64, numRows)}
	for i, v := range byVals {
		iv, ok := v.(int64)
		if !ok {
			by.Ints[i] = column.NullInt64
			continue
		}
		by.Ints[i] = iv
	}

	values := &column.Column{Name: valueName, Kind: column.KindFloat64, Floats: make([]float64, numRows)}
	for i, v := range valVals {
		fv, ok := v.(float64)
		if !ok {
			values.Floats[i] = column.NullFloat64
			continue
		}
		values.Floats[i] = fv
	}

	return by, values, nil
}

// columnIndices resolves the by/value column names to their positional
// index in the Parquet schema handle.
func columnIndices(reader *pqReader.ParquetReader, byName, valueName string) (int, int, error) {
	byIdx, valIdx := -1, -1
	for i, elem := range reader.SchemaHandler.SchemaElements {
		switch elem.Name {
		case byName:
			byIdx = i
		case valueName:
			valIdx = i
		}
	}
	if byIdx < 0 {
		return 0, 0, fmt.Errorf("column %q not found", byName)
	}
	if valIdx < 0 {
		return 0, 0, fmt.Errorf("column %q not found", valueName)
	}
	return byIdx, valIdx, nil
}
