package catalog

import "github.com/randalmurphal/errscout/pkg/errscout/taxonomy"

const accountPath = "/accounts/{account_id}"

func pathParam(name, desc string) Param {
	return Param{Name: name, In: InPath, Type: "string", Required: true, Description: desc}
}

func queryParam(name, typ, desc string) Param {
	return Param{Name: name, In: InQuery, Type: typ, Description: desc}
}

func bodyParam(name, typ string, required bool, desc string) Param {
	return Param{Name: name, In: InBody, Type: typ, Required: required, Description: desc}
}

type serviceDef struct {
	name        string
	description string
	operations  []Operation
}

// defaultServices is the built-in catalog. The {account_id} placeholder is
// filled by the probe executor and is not a planner-supplied parameter.
var defaultServices = []serviceDef{
	{
		name:        "KV",
		description: "Workers KV namespaces and key-value pairs",
		operations: []Operation{
			{
				Name: "listNamespaces", Method: "GET",
				Path:    accountPath + "/storage/kv/namespaces",
				Summary: "List the account's KV namespaces.",
				Params: []Param{
					queryParam("page", "integer", "page number, starting at 1"),
					queryParam("per_page", "integer", "namespaces per page (5-1000)"),
					queryParam("order", "string", "id or title"),
					queryParam("direction", "string", "asc or desc"),
				},
				ExpectedErrors: []taxonomy.Category{taxonomy.Authentication, taxonomy.Validation},
			},
			{
				Name: "createNamespace", Method: "POST",
				Path:    accountPath + "/storage/kv/namespaces",
				Summary: "Create a namespace.",
				Params: []Param{
					bodyParam("title", "string", true, "human-readable namespace name"),
				},
				ExpectedErrors: []taxonomy.Category{taxonomy.Authentication, taxonomy.Validation, taxonomy.AlreadyExists, taxonomy.QuotaExceeded},
			},
			{
				Name: "deleteNamespace", Method: "DELETE",
				Path:    accountPath + "/storage/kv/namespaces/{namespace_id}",
				Summary: "Delete a namespace and every key in it.",
				Params: []Param{
					pathParam("namespace_id", "namespace identifier"),
				},
				ExpectedErrors: []taxonomy.Category{taxonomy.Authentication, taxonomy.NotFound},
			},
			{
				Name: "getValue", Method: "GET",
				Path:    accountPath + "/storage/kv/namespaces/{namespace_id}/values/{key_name}",
				Summary: "Read the value stored under a key.",
				Params: []Param{
					pathParam("namespace_id", "namespace identifier"),
					pathParam("key_name", "key name, URL-encoded, max 512 bytes"),
				},
				ExpectedErrors: []taxonomy.Category{taxonomy.Authentication, taxonomy.NotFound},
			},
			{
				Name: "putValue", Method: "PUT",
				Path:    accountPath + "/storage/kv/namespaces/{namespace_id}/values/{key_name}",
				Summary: "Write a value under a key.",
				Params: []Param{
					pathParam("namespace_id", "namespace identifier"),
					pathParam("key_name", "key name, URL-encoded, max 512 bytes"),
					queryParam("expiration_ttl", "integer", "seconds until expiry, at least 60"),
					bodyParam("value", "string", true, "value to store"),
					bodyParam("metadata", "object", false, "arbitrary JSON metadata, max 1024 bytes"),
				},
				ExpectedErrors: []taxonomy.Category{taxonomy.Authentication, taxonomy.NotFound, taxonomy.Validation},
			},
			{
				Name: "deleteValue", Method: "DELETE",
				Path:    accountPath + "/storage/kv/namespaces/{namespace_id}/values/{key_name}",
				Summary: "Delete a key.",
				Params: []Param{
					pathParam("namespace_id", "namespace identifier"),
					pathParam("key_name", "key name"),
				},
				ExpectedErrors: []taxonomy.Category{taxonomy.Authentication, taxonomy.NotFound},
			},
			{
				Name: "listKeys", Method: "GET",
				Path:    accountPath + "/storage/kv/namespaces/{namespace_id}/keys",
				Summary: "List keys in a namespace.",
				Params: []Param{
					pathParam("namespace_id", "namespace identifier"),
					queryParam("prefix", "string", "only keys starting with this prefix"),
					queryParam("limit", "integer", "keys per page (10-1000)"),
					queryParam("cursor", "string", "pagination cursor"),
				},
				ExpectedErrors: []taxonomy.Category{taxonomy.Authentication, taxonomy.NotFound, taxonomy.Validation},
			},
		},
	},
	{
		name:        "Workers",
		description: "Worker scripts and the account workers.dev subdomain",
		operations: []Operation{
			{
				Name: "listScripts", Method: "GET",
				Path:           accountPath + "/workers/scripts",
				Summary:        "List uploaded worker scripts.",
				ExpectedErrors: []taxonomy.Category{taxonomy.Authentication},
			},
			{
				Name: "getScript", Method: "GET",
				Path:    accountPath + "/workers/scripts/{script_name}",
				Summary: "Download a worker script.",
				Params: []Param{
					pathParam("script_name", "worker name"),
				},
				ExpectedErrors: []taxonomy.Category{taxonomy.Authentication, taxonomy.NotFound},
			},
			{
				Name: "deleteScript", Method: "DELETE",
				Path:    accountPath + "/workers/scripts/{script_name}",
				Summary: "Delete a worker script.",
				Params: []Param{
					pathParam("script_name", "worker name"),
					queryParam("force", "boolean", "delete even if bound to other resources"),
				},
				ExpectedErrors: []taxonomy.Category{taxonomy.Authentication, taxonomy.NotFound},
			},
			{
				Name: "getSubdomain", Method: "GET",
				Path:           accountPath + "/workers/subdomain",
				Summary:        "Read the account's workers.dev subdomain.",
				ExpectedErrors: []taxonomy.Category{taxonomy.Authentication},
			},
		},
	},
	{
		name:        "R2",
		description: "R2 object storage buckets",
		operations: []Operation{
			{
				Name: "listBuckets", Method: "GET",
				Path:    accountPath + "/r2/buckets",
				Summary: "List buckets.",
				Params: []Param{
					queryParam("name_contains", "string", "filter by substring"),
					queryParam("per_page", "integer", "buckets per page"),
				},
				ExpectedErrors: []taxonomy.Category{taxonomy.Authentication},
			},
			{
				Name: "createBucket", Method: "POST",
				Path:    accountPath + "/r2/buckets",
				Summary: "Create a bucket.",
				Params: []Param{
					bodyParam("name", "string", true, "3-63 lowercase letters, digits and hyphens"),
					bodyParam("locationHint", "string", false, "apac, eeur, enam, weur or wnam"),
				},
				ExpectedErrors: []taxonomy.Category{taxonomy.Authentication, taxonomy.Validation, taxonomy.AlreadyExists},
			},
			{
				Name: "getBucket", Method: "GET",
				Path:    accountPath + "/r2/buckets/{bucket_name}",
				Summary: "Read bucket metadata.",
				Params: []Param{
					pathParam("bucket_name", "bucket name"),
				},
				ExpectedErrors: []taxonomy.Category{taxonomy.Authentication, taxonomy.NotFound},
			},
			{
				Name: "deleteBucket", Method: "DELETE",
				Path:    accountPath + "/r2/buckets/{bucket_name}",
				Summary: "Delete an empty bucket.",
				Params: []Param{
					pathParam("bucket_name", "bucket name"),
				},
				ExpectedErrors: []taxonomy.Category{taxonomy.Authentication, taxonomy.NotFound},
			},
		},
	},
	{
		name:        "D1",
		description: "D1 serverless SQL databases",
		operations: []Operation{
			{
				Name: "listDatabases", Method: "GET",
				Path:    accountPath + "/d1/database",
				Summary: "List databases.",
				Params: []Param{
					queryParam("name", "string", "filter by name"),
					queryParam("page", "integer", "page number"),
				},
				ExpectedErrors: []taxonomy.Category{taxonomy.Authentication},
			},
			{
				Name: "createDatabase", Method: "POST",
				Path:    accountPath + "/d1/database",
				Summary: "Create a database.",
				Params: []Param{
					bodyParam("name", "string", true, "database name"),
					bodyParam("primary_location_hint", "string", false, "preferred region"),
				},
				ExpectedErrors: []taxonomy.Category{taxonomy.Authentication, taxonomy.Validation, taxonomy.AlreadyExists},
			},
			{
				Name: "getDatabase", Method: "GET",
				Path:    accountPath + "/d1/database/{database_id}",
				Summary: "Read database metadata.",
				Params: []Param{
					pathParam("database_id", "database UUID"),
				},
				ExpectedErrors: []taxonomy.Category{taxonomy.Authentication, taxonomy.NotFound},
			},
			{
				Name: "queryDatabase", Method: "POST",
				Path:    accountPath + "/d1/database/{database_id}/query",
				Summary: "Run SQL against a database.",
				Params: []Param{
					pathParam("database_id", "database UUID"),
					bodyParam("sql", "string", true, "SQL statement"),
					bodyParam("params", "array", false, "positional bind parameters"),
				},
				ExpectedErrors: []taxonomy.Category{taxonomy.Authentication, taxonomy.NotFound, taxonomy.Validation},
			},
		},
	},
	{
		name:        "Queues",
		description: "Queues message queues",
		operations: []Operation{
			{
				Name: "listQueues", Method: "GET",
				Path:           accountPath + "/queues",
				Summary:        "List queues.",
				ExpectedErrors: []taxonomy.Category{taxonomy.Authentication},
			},
			{
				Name: "createQueue", Method: "POST",
				Path:    accountPath + "/queues",
				Summary: "Create a queue.",
				Params: []Param{
					bodyParam("queue_name", "string", true, "queue name"),
				},
				ExpectedErrors: []taxonomy.Category{taxonomy.Authentication, taxonomy.Validation, taxonomy.AlreadyExists},
			},
			{
				Name: "getQueue", Method: "GET",
				Path:    accountPath + "/queues/{queue_id}",
				Summary: "Read queue details.",
				Params: []Param{
					pathParam("queue_id", "queue identifier"),
				},
				ExpectedErrors: []taxonomy.Category{taxonomy.Authentication, taxonomy.NotFound},
			},
			{
				Name: "deleteQueue", Method: "DELETE",
				Path:    accountPath + "/queues/{queue_id}",
				Summary: "Delete a queue.",
				Params: []Param{
					pathParam("queue_id", "queue identifier"),
				},
				ExpectedErrors: []taxonomy.Category{taxonomy.Authentication, taxonomy.NotFound},
			},
		},
	},
	{
		name:        "DNS",
		description: "DNS records of a zone",
		operations: []Operation{
			{
				Name: "listRecords", Method: "GET",
				Path:    "/zones/{zone_id}/dns_records",
				Summary: "List DNS records.",
				Params: []Param{
					pathParam("zone_id", "zone identifier"),
					queryParam("type", "string", "record type, e.g. A or CNAME"),
					queryParam("name", "string", "exact record name"),
				},
				ExpectedErrors: []taxonomy.Category{taxonomy.Authentication, taxonomy.NotFound},
			},
			{
				Name: "createRecord", Method: "POST",
				Path:    "/zones/{zone_id}/dns_records",
				Summary: "Create a DNS record.",
				Params: []Param{
					pathParam("zone_id", "zone identifier"),
					bodyParam("type", "string", true, "record type"),
					bodyParam("name", "string", true, "record name"),
					bodyParam("content", "string", true, "record content"),
					bodyParam("ttl", "integer", false, "1 for automatic, otherwise 60-86400"),
				},
				ExpectedErrors: []taxonomy.Category{taxonomy.Authentication, taxonomy.Validation, taxonomy.AlreadyExists},
			},
			{
				Name: "getRecord", Method: "GET",
				Path:    "/zones/{zone_id}/dns_records/{dns_record_id}",
				Summary: "Read a DNS record.",
				Params: []Param{
					pathParam("zone_id", "zone identifier"),
					pathParam("dns_record_id", "record identifier"),
				},
				ExpectedErrors: []taxonomy.Category{taxonomy.Authentication, taxonomy.NotFound},
			},
			{
				Name: "deleteRecord", Method: "DELETE",
				Path:    "/zones/{zone_id}/dns_records/{dns_record_id}",
				Summary: "Delete a DNS record.",
				Params: []Param{
					pathParam("zone_id", "zone identifier"),
					pathParam("dns_record_id", "record identifier"),
				},
				ExpectedErrors: []taxonomy.Category{taxonomy.Authentication, taxonomy.NotFound},
			},
		},
	},
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c := New()
	for _, def := range defaultServices {
		if err := c.AddService(def.name, def.description); err != nil {
			panic("catalog: " + err.Error())
		}
		for _, op := range def.operations {
			op.Service = def.name
			if err := c.AddOperation(op); err != nil {
				panic("catalog: " + err.Error())
			}
		}
	}
	return c
}
