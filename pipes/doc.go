/*
Package pipes is the worker side of the subprocess message channel.

A worker started by the orchestrator finds two parameters in its environment:
DAGSTER_PIPES_CONTEXT describes the unit of work and DAGSTER_PIPES_MESSAGES names
where reports go. Both are JSON objects, zlib-compressed and base64-encoded.
Messages are JSON records, one per line, tagged by their method:

	{"__dagster_pipes_version":"0.1","method":"report_asset_materialization","params":{...}}

A typical worker:

	ctx, err := pipes.Open()
	if err != nil {
		log.Fatal(err)
	}
	err = ctx.ReportAssetMaterialization("orders", pipes.Metadata{
		"rows_processed": metadata.FromInt(42),
	}, "")
	ctx.Close(pipes.ExceptionFromError(err))

Every worker should end with exactly one Close. A missing close is treated by the
orchestrator as a failed invocation.
*/
package pipes
