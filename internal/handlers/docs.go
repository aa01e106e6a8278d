package handlers

import (
	"encoding/json"
	"net/http"

	"weather-alerts/internal/models"
)

func limitParam() map[string]interface{} {
	return map[string]interface{}{
		"name":        "limit",
		"in":          "query",
		"description": "Number of most recent records (default: 50, max: 500)",
		"required":    false,
		"schema":      map[string]interface{}{"type": "integer", "default": DefaultRecordsLimit, "minimum": 1, "maximum": 500},
	}
}

func jsonResponse(description string, schema interface{}) map[string]interface{} {
	return map[string]interface{}{
		"description": description,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{"schema": schema},
		},
	}
}

func recordSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"time":        columnProperty("time", "string", "2024-07-14 09:30:00"),
			"city":        columnProperty("city", "string", ""),
			"main":        columnProperty("main", "string", "Rain"),
			"condition":   columnProperty("condition", "string", "Moderate Rain"),
			"icon":        columnProperty("icon", "string", ""),
			"temperature": columnProperty("temperature", "number", ""),
			"humidity":    columnProperty("humidity", "number", ""),
		},
	}
}

// columnProperty describes a record field with the description of its stored column.
func columnProperty(key, typ, example string) map[string]string {
	prop := map[string]string{"type": typ}
	for _, c := range models.Columns {
		if c.Key == key {
			prop["description"] = c.Description
			break
		}
	}
	if example != "" {
		prop["example"] = example
	}
	return prop
}

func arrayOf(items interface{}) map[string]interface{} {
	return map[string]interface{}{"type": "array", "items": items}
}

var errorSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"error":   map[string]string{"type": "string"},
		"message": map[string]string{"type": "string"},
		"code":    map[string]string{"type": "integer"},
	},
}

// OpenAPISpec returns the OpenAPI 3.0 specification for the Weather Alerts API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	spec := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "Weather Alerts API",
			"description": "Read-only view of the weather log and the bad-weather alert evaluator. Columns: " + joinHeaders(),
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": map[string]interface{}{
			"/api/records": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Recent records",
					"description": "Most recent stored readings, oldest first",
					"parameters":  []map[string]interface{}{limitParam()},
					"responses": map[string]interface{}{
						"200": jsonResponse("Successful response", map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"data":  arrayOf(recordSchema()),
								"count": map[string]string{"type": "integer"},
								"limit": map[string]string{"type": "integer"},
							},
						}),
						"400": jsonResponse("Invalid limit", errorSchema),
						"502": jsonResponse("Store unavailable", errorSchema),
					},
				},
			},
			"/api/records/summary": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Record summary",
					"description": "Counts per main category and the latest record per city",
					"parameters":  []map[string]interface{}{limitParam()},
					"responses": map[string]interface{}{
						"200": jsonResponse("Successful response", map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"records": map[string]string{"type": "integer"},
								"by_main": map[string]interface{}{"type": "object", "additionalProperties": map[string]string{"type": "integer"}},
								"latest":  arrayOf(recordSchema()),
							},
						}),
						"400": jsonResponse("Invalid limit", errorSchema),
						"502": jsonResponse("Store unavailable", errorSchema),
					},
				},
			},
			"/api/alerts/preview": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Preview alert",
					"description": "Evaluates the lookback window without sending notifications",
					"responses": map[string]interface{}{
						"200": jsonResponse("Evaluation result", map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"triggered": map[string]string{"type": "boolean"},
								"evaluated": map[string]string{"type": "integer"},
								"matches":   arrayOf(recordSchema()),
								"subject":   map[string]string{"type": "string"},
								"body":      map[string]string{"type": "string"},
							},
						}),
						"502": jsonResponse("Store unavailable", errorSchema),
					},
				},
			},
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Health check",
					"description": "Checks that the configured store is reachable",
					"responses": map[string]interface{}{
						"200": jsonResponse("Store reachable", map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"status":  map[string]string{"type": "string"},
								"backend": map[string]string{"type": "string"},
							},
						}),
						"503": map[string]interface{}{"description": "Store unreachable"},
					},
				},
			},
			"/metrics": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Prometheus metrics",
					"description": "Prometheus metrics endpoint for monitoring",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Prometheus metrics in text format",
							"content": map[string]interface{}{
								"text/plain": map[string]interface{}{
									"schema": map[string]string{"type": "string"},
								},
							},
						},
					},
				},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}

func joinHeaders() string {
	out := ""
	for i, c := range models.Columns {
		if i > 0 {
			out += ", "
		}
		out += c.Key
	}
	return out
}
