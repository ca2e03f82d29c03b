package daemon

import (
	"encoding/json"
	"os"

	"waved/internal/codec"
	"waved/internal/events"
	"waved/internal/model"
	"waved/internal/transform"
	"waved/internal/uds"
)

// registerHandlers registers the UDS request handlers. Stub operations
// accept any payload and always report success; the only failures a client
// can see are protocol-level.
func (d *Daemon) registerHandlers() {
	d.server.Handle(uds.CmdPing, func(req *uds.Request) *uds.Response {
		return uds.SuccessResponse(map[string]string{
			"status":  string(model.StatusOK),
			"version": model.Version,
		})
	})

	d.server.Handle(uds.CmdDeploy, d.handleDeploy)
	d.server.Handle(uds.CmdValidate, d.handleValidate)

	d.server.Handle(uds.CmdAnalyze, d.handleAnalyze)
	d.server.Handle(uds.CmdExecAnalysis, d.handleAnalyze)
	d.server.Handle(uds.CmdProcess, d.handleProcess)
	d.server.Handle(uds.CmdSynthesize, d.handleProcess)

	d.server.Handle(uds.CmdTransform, d.handleTransform)
	d.server.Handle(uds.CmdSerialize, d.handleSerialize)

	d.server.Handle(uds.CmdHash, d.handleHash)
	d.server.Handle(uds.CmdCodecTransform, d.handleCodecTransform)

	d.server.Handle(uds.CmdStatus, d.handleStatus)

	d.server.Handle(uds.CmdReload, func(req *uds.Request) *uds.Response {
		d.reloadConfig()
		d.mu.RLock()
		wave := d.config.Runner.Wave
		d.mu.RUnlock()
		return uds.SuccessResponse(map[string]any{"status": "reloaded", "wave": wave})
	})

	d.server.Handle(uds.CmdShutdown, func(req *uds.Request) *uds.Response {
		d.log(LogLevelInfo, "shutdown requested via UDS")
		go d.Shutdown()
		return uds.SuccessResponse(map[string]string{"status": "shutdown_accepted"})
	})
}

// decodeParam pulls one field out of the request params. Missing or
// malformed params decode to nil, which every stub operation accepts.
func decodeParam(req *uds.Request, field string) any {
	if len(req.Params) == 0 {
		return nil
	}
	var params map[string]any
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil
	}
	return params[field]
}

func (d *Daemon) handleDeploy(req *uds.Request) *uds.Response {
	task := decodeParam(req, "task")
	deployment := d.currentRunner().Deploy(task)

	opID := d.recordOp("runner", model.IDTypeDeploy, deployment.Status)
	d.bus.Publish(events.EventDeployCompleted, map[string]any{
		"op_id": opID,
		"wave":  deployment.Wave,
	})

	return uds.SuccessResponse(map[string]any{
		"op_id":   opID,
		"wave":    deployment.Wave,
		"status":  deployment.Status,
		"results": deployment.Results,
	})
}

func (d *Daemon) handleValidate(req *uds.Request) *uds.Response {
	validation := d.currentRunner().Validate()
	return uds.SuccessResponse(map[string]any{
		"valid":  validation.Valid,
		"checks": validation.Checks,
	})
}

func (d *Daemon) handleAnalyze(req *uds.Request) *uds.Response {
	analysis := d.currentAnalyzer().Analyze(decodeParam(req, "context"))

	opID := d.recordOp("analyzer", model.IDTypeAnalysis, model.StatusOK)
	d.bus.Publish(events.EventAnalysisCompleted, map[string]any{
		"op_id":      opID,
		"confidence": analysis.Confidence,
	})

	return uds.SuccessResponse(map[string]any{
		"op_id":           opID,
		"confidence":      analysis.Confidence,
		"patterns":        analysis.Patterns,
		"recommendations": analysis.Recommendations,
	})
}

func (d *Daemon) handleProcess(req *uds.Request) *uds.Response {
	processed := d.currentAnalyzer().Process(decodeParam(req, "data"))

	opID := d.recordOp("analyzer", model.IDTypeAnalysis, processed.Status)
	d.bus.Publish(events.EventAnalysisCompleted, map[string]any{
		"op_id": opID,
	})

	return uds.SuccessResponse(map[string]any{
		"op_id":   opID,
		"status":  processed.Status,
		"results": processed.Results,
	})
}

func (d *Daemon) handleTransform(req *uds.Request) *uds.Response {
	out := transform.Process(decodeParam(req, "input"))
	result := model.NewResult(out)

	opID := d.recordOp("transform", model.IDTypeTransform, result.Status)
	d.bus.Publish(events.EventTransformApplied, map[string]any{
		"op_id": opID,
	})

	return uds.SuccessResponse(map[string]any{
		"op_id":     opID,
		"status":    result.Status,
		"timestamp": result.Timestamp,
		"data":      result.Data,
	})
}

func (d *Daemon) handleSerialize(req *uds.Request) *uds.Response {
	// The input arrived as JSON, so re-encoding it cannot fail.
	encoded, err := transform.Serialize(decodeParam(req, "obj"))
	if err != nil {
		return uds.ErrorResponse(uds.ErrCodeInternal, err.Error())
	}

	opID := d.recordOp("transform", model.IDTypeTransform, model.StatusOK)
	d.bus.Publish(events.EventTransformApplied, map[string]any{
		"op_id": opID,
	})

	return uds.SuccessResponse(map[string]any{
		"op_id":      opID,
		"serialized": encoded,
	})
}

func (d *Daemon) handleHash(req *uds.Request) *uds.Response {
	data, _ := decodeParam(req, "data").(string)
	digest := d.digester.DigestString(data)

	opID := d.recordOp("codec", model.IDTypeDigest, model.StatusOK)
	d.bus.Publish(events.EventDigestComputed, map[string]any{
		"op_id":  opID,
		"digest": digest,
	})

	return uds.SuccessResponse(map[string]any{
		"op_id":  opID,
		"digest": digest,
	})
}

func (d *Daemon) handleCodecTransform(req *uds.Request) *uds.Response {
	copied, err := codec.Transform(decodeParam(req, "data"))
	if err != nil {
		return uds.ErrorResponse(uds.ErrCodeInternal, err.Error())
	}

	opID := d.recordOp("codec", model.IDTypeTransform, model.StatusOK)
	d.bus.Publish(events.EventTransformApplied, map[string]any{
		"op_id": opID,
	})

	return uds.SuccessResponse(map[string]any{
		"op_id": opID,
		"data":  copied,
	})
}

func (d *Daemon) handleStatus(req *uds.Request) *uds.Response {
	snap, err := d.store.Snapshot()
	if err != nil {
		return uds.ErrorResponse(uds.ErrCodeInternal, err.Error())
	}

	d.mu.RLock()
	wave := d.config.Runner.Wave
	mode := d.config.Analyzer.Mode
	d.mu.RUnlock()

	return uds.SuccessResponse(map[string]any{
		"pid":           os.Getpid(),
		"version":       model.Version,
		"wave":          wave,
		"analyzer_mode": mode,
		"counters":      snap.Counters,
		"last_results":  snap.LastResults,
		"heartbeat":     snap.DaemonHeartbeat,
	})
}

// recordOp generates an operation ID and persists the op to the state file.
// State write failures are logged, not surfaced; the stub operation itself
// has already succeeded.
func (d *Daemon) recordOp(component string, idType model.IDType, status model.Status) string {
	opID, err := model.GenerateID(idType)
	if err != nil {
		d.log(LogLevelError, "generate op ID: %v", err)
		return ""
	}
	if err := d.store.RecordOp(component, opID, status); err != nil {
		d.log(LogLevelWarn, "record op %s: %v", opID, err)
	}
	return opID
}
