package codeexec

import (
	"encoding/json"
	"fmt"
)

// Task names the analyzer may emit. Unknown tasks fail with a hint so
// the presenter can say what went wrong.
const (
	taskPackEnergy = "battery_pack_energy"
	taskArithmetic = "arithmetic"
)

// generateTaskCode renders the python for a named task. Every template
// ends by printing a RESULT_JSON line the tool parses back into data.
func generateTaskCode(task string, vars map[string]any) (string, error) {
	switch task {
	case taskPackEnergy:
		return packEnergyCode(vars)
	case taskArithmetic:
		return arithmeticCode(vars)
	default:
		return "", fmt.Errorf("unknown task '%s' (known: %s, %s)", task, taskPackEnergy, taskArithmetic)
	}
}

// packEnergyCode computes pack voltage, capacity and energy from cell
// parameters.
func packEnergyCode(vars map[string]any) (string, error) {
	series, parallel, capacityAh, voltage, err := packVars(vars)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`import json

series_cells = %d
parallel_cells = %d
cell_capacity_ah = %g
cell_voltage_v = %g

pack_voltage_v = series_cells * cell_voltage_v
pack_capacity_ah = parallel_cells * cell_capacity_ah
pack_wh = pack_voltage_v * pack_capacity_ah
pack_kwh = pack_wh / 1000.0

print(f"Pack: {series_cells}S{parallel_cells}P")
print(f"Nominal voltage: {pack_voltage_v:.2f} V")
print(f"Capacity: {pack_capacity_ah:.2f} Ah")
print(f"Energy: {pack_wh:.2f} Wh ({pack_kwh:.3f} kWh)")

result = {
    "series_cells": series_cells,
    "parallel_cells": parallel_cells,
    "pack_nominal_voltage_v": round(pack_voltage_v, 2),
    "pack_total_ah": round(pack_capacity_ah, 2),
    "pack_total_wh": round(pack_wh, 2),
    "pack_total_kwh": round(pack_kwh, 5),
}
print("RESULT_JSON:" + json.dumps(result))
`, series, parallel, capacityAh, voltage), nil
}

// arithmeticCode evaluates a plain expression built from whitelisted
// characters; anything else is rejected before it reaches python.
func arithmeticCode(vars map[string]any) (string, error) {
	expr, _ := vars["expression"].(string)
	if expr == "" {
		return "", fmt.Errorf("arithmetic task requires 'expression' variable")
	}
	for _, r := range expr {
		switch {
		case r >= '0' && r <= '9':
		case r == '+' || r == '-' || r == '*' || r == '/' || r == '.' || r == '(' || r == ')' || r == ' ' || r == '%':
		default:
			return "", fmt.Errorf("expression contains disallowed character %q", r)
		}
	}

	exprJSON, _ := json.Marshal(expr)
	return fmt.Sprintf(`import json

expression = %s
value = eval(expression)
print(f"{expression} = {value}")
print("RESULT_JSON:" + json.dumps({"expression": expression, "value": value}))
`, string(exprJSON)), nil
}

// packEnergyNative mirrors packEnergyCode in Go for the sandbox-less
// fallback path.
func packEnergyNative(vars map[string]any) (map[string]any, error) {
	series, parallel, capacityAh, voltage, err := packVars(vars)
	if err != nil {
		return nil, err
	}

	packVoltage := float64(series) * voltage
	packAh := float64(parallel) * capacityAh
	packWh := packVoltage * packAh
	packKWh := packWh / 1000.0

	return map[string]any{
		"stdout": fmt.Sprintf(
			"Pack: %dS%dP\nNominal voltage: %.2f V\nCapacity: %.2f Ah\nEnergy: %.2f Wh (%.3f kWh)\n",
			series, parallel, packVoltage, packAh, packWh, packKWh),
		"series_cells":           series,
		"parallel_cells":         parallel,
		"pack_nominal_voltage_v": round2(packVoltage),
		"pack_total_ah":          round2(packAh),
		"pack_total_wh":          round2(packWh),
		"pack_total_kwh":         round5(packKWh),
	}, nil
}

func packVars(vars map[string]any) (series, parallel int, capacityAh, voltage float64, err error) {
	series = intVar(vars, "series_cells")
	parallel = intVar(vars, "parallel_cells")
	capacityAh = floatVar(vars, "cell_capacity_ah")
	voltage = floatVar(vars, "cell_voltage_v")
	if voltage == 0 {
		voltage = 3.6 // Nominal li-ion default
	}
	if series <= 0 || parallel <= 0 || capacityAh <= 0 {
		err = fmt.Errorf("battery_pack_energy requires series_cells, parallel_cells and cell_capacity_ah variables")
	}
	return
}

func intVar(vars map[string]any, key string) int {
	switch v := vars[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

func floatVar(vars map[string]any, key string) float64 {
	switch v := vars[key].(type) {
	case int:
		return float64(v)
	case float64:
		return v
	default:
		return 0
	}
}

func round2(v float64) float64 { return float64(int64(v*100+0.5)) / 100 }
func round5(v float64) float64 { return float64(int64(v*100000+0.5)) / 100000 }
