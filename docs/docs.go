// Package docs registers the OpenAPI document served at /swagger.
// Regenerate from the handler annotations with:
//
//	swag init -g cmd/server/main.go --v3.1 -o docs
package docs

import "github.com/swaggo/swag/v2"

const docTemplate = `{
    "openapi": "3.1.0",
    "info": {
        "title": "{{.Title}}",
        "description": "{{escape .Description}}",
        "version": "{{.Version}}"
    },
    "servers": [{"url": "{{.BasePath}}"}],
    "paths": {
        "/health": {"get": {"tags": ["health"], "operationId": "apiHealth", "summary": "Liveness and database status", "responses": {"200": {"description": "OK"}, "503": {"description": "Database unavailable"}}}},
        "/tenants": {
            "get": {"tags": ["tenants"], "operationId": "listTenants", "summary": "List tenants", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["tenants"], "operationId": "createTenant", "summary": "Create a tenant", "responses": {"201": {"description": "Created"}, "400": {"$ref": "#/components/responses/Error"}}}
        },
        "/tenants/{id}": {
            "get": {"tags": ["tenants"], "operationId": "getTenant", "summary": "Get a tenant", "parameters": [{"$ref": "#/components/parameters/ID"}], "responses": {"200": {"description": "OK"}, "404": {"$ref": "#/components/responses/Error"}}},
            "put": {"tags": ["tenants"], "operationId": "renameTenant", "summary": "Rename a tenant", "parameters": [{"$ref": "#/components/parameters/ID"}], "responses": {"200": {"description": "OK"}, "404": {"$ref": "#/components/responses/Error"}}}
        },
        "/tenants/{id}/pricing-plan": {
            "get": {"tags": ["tenants"], "operationId": "getTenantPricingPlan", "summary": "Effective pricing plan of a tenant", "parameters": [{"$ref": "#/components/parameters/ID"}], "responses": {"200": {"description": "OK"}, "422": {"$ref": "#/components/responses/Error"}}},
            "put": {"tags": ["tenants"], "operationId": "assignTenantPricingPlan", "summary": "Assign a pricing plan", "parameters": [{"$ref": "#/components/parameters/ID"}], "responses": {"200": {"description": "OK"}, "422": {"$ref": "#/components/responses/Error"}}}
        },
        "/services": {
            "get": {"tags": ["services"], "operationId": "listServices", "summary": "List services", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["services"], "operationId": "createService", "summary": "Register a service, optionally with a multipart file", "responses": {"201": {"description": "Created"}, "400": {"$ref": "#/components/responses/Error"}, "413": {"$ref": "#/components/responses/Error"}}}
        },
        "/services/{id}": {"get": {"tags": ["services"], "operationId": "getService", "summary": "Get a service", "parameters": [{"$ref": "#/components/parameters/ID"}], "responses": {"200": {"description": "OK"}, "404": {"$ref": "#/components/responses/Error"}}}},
        "/services/{id}/artifact": {"get": {"tags": ["services"], "operationId": "downloadServiceArtifact", "summary": "Redirect to the package download URL", "parameters": [{"$ref": "#/components/parameters/ID"}], "responses": {"307": {"description": "Redirect"}, "404": {"$ref": "#/components/responses/Error"}}}},
        "/pricing-plans": {
            "get": {"tags": ["pricing-plans"], "operationId": "listPricingPlans", "summary": "List pricing plans", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["pricing-plans"], "operationId": "createPricingPlan", "summary": "Create a pricing plan", "responses": {"201": {"description": "Created"}, "400": {"$ref": "#/components/responses/Error"}}}
        },
        "/usage-events": {"post": {"tags": ["usage"], "operationId": "ingestUsageEvents", "summary": "Ingest invocation events", "responses": {"200": {"description": "Counts of accepted, duplicate and late events"}, "400": {"$ref": "#/components/responses/Error"}, "429": {"$ref": "#/components/responses/Error"}}}},
        "/usage-aggregates": {"get": {"tags": ["usage"], "operationId": "listUsageAggregates", "summary": "List usage windows", "responses": {"200": {"description": "OK"}, "400": {"$ref": "#/components/responses/Error"}}}},
        "/usage-aggregates/close": {"post": {"tags": ["usage"], "operationId": "closeUsageWindows", "summary": "Close due windows", "responses": {"200": {"description": "Number of windows closed"}}}},
        "/billing/calculate": {"post": {"tags": ["billing"], "operationId": "calculateBill", "summary": "Preview a bill", "responses": {"200": {"description": "OK"}, "422": {"$ref": "#/components/responses/Error"}}}},
        "/billing/generate": {"post": {"tags": ["billing"], "operationId": "generateBill", "summary": "Generate or fetch the bill of a period", "responses": {"200": {"description": "Existing bill"}, "201": {"description": "Created"}, "409": {"$ref": "#/components/responses/Error"}}}},
        "/bills": {"get": {"tags": ["bills"], "operationId": "listBills", "summary": "List the bills of a tenant", "responses": {"200": {"description": "OK"}, "400": {"$ref": "#/components/responses/Error"}}}},
        "/bills/{id}": {"get": {"tags": ["bills"], "operationId": "getBill", "summary": "Get a bill", "parameters": [{"$ref": "#/components/parameters/ID"}], "responses": {"200": {"description": "OK"}, "404": {"$ref": "#/components/responses/Error"}}}},
        "/bills/{id}/payments": {"post": {"tags": ["payments"], "operationId": "createPayment", "summary": "Start payment of a bill", "parameters": [{"$ref": "#/components/parameters/ID"}], "responses": {"200": {"description": "Existing payment"}, "201": {"description": "Created"}}}},
        "/bills/{id}/payment": {"get": {"tags": ["payments"], "operationId": "getBillPayment", "summary": "Get the payment of a bill", "parameters": [{"$ref": "#/components/parameters/ID"}], "responses": {"200": {"description": "OK"}, "404": {"$ref": "#/components/responses/Error"}}}},
        "/payments/{id}": {"get": {"tags": ["payments"], "operationId": "getPayment", "summary": "Get a payment", "parameters": [{"$ref": "#/components/parameters/ID"}], "responses": {"200": {"description": "OK"}, "404": {"$ref": "#/components/responses/Error"}}}},
        "/payments/{id}/pay": {"post": {"tags": ["payments"], "operationId": "payPayment", "summary": "Mark a payment as paid", "parameters": [{"$ref": "#/components/parameters/ID"}], "responses": {"200": {"description": "OK"}, "422": {"$ref": "#/components/responses/Error"}}}},
        "/payments/{id}/reconcile": {"post": {"tags": ["payments"], "operationId": "reconcilePayment", "summary": "Reconcile a paid payment", "parameters": [{"$ref": "#/components/parameters/ID"}], "responses": {"200": {"description": "OK"}, "422": {"$ref": "#/components/responses/Error"}}}}
    },
    "components": {
        "parameters": {
            "ID": {"name": "id", "in": "path", "required": true, "schema": {"type": "string", "format": "uuid"}}
        },
        "responses": {
            "Error": {"description": "Error envelope", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/ErrorResponse"}}}}
        },
        "schemas": {
            "ErrorResponse": {
                "type": "object",
                "properties": {
                    "success": {"type": "boolean"},
                    "request_id": {"type": "string"},
                    "error": {
                        "type": "object",
                        "properties": {
                            "code": {"type": "string"},
                            "message": {"type": "string"},
                            "details": {"type": "array", "items": {"type": "object", "properties": {"field": {"type": "string"}, "message": {"type": "string"}}}}
                        }
                    }
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	BasePath:         "/api/v1",
	Title:            "FaaS Billing API",
	Description:      "Tenants, services, pricing plans, usage metering, bills and payments",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
