package worker

// loopOperations drives the node. Every tick the incoming blocks and
// transactions are reconciled and mining is kept going.
func (w *Worker) loopOperations() {
	w.evHandler("worker: loopOperations: G started")
	defer w.evHandler("worker: loopOperations: G completed")

	for {
		select {
		case <-w.loopTicker.C:
			if !w.isShutdown() {
				w.runLoopOperation()
			}
		case <-w.shut:
			w.evHandler("worker: loopOperations: received shut signal")
			return
		}
	}
}

// runLoopOperation performs one iteration of the orchestration loop.
func (w *Worker) runLoopOperation() {

	// A changed ledger makes the block being mined useless. The new ledger
	// is already in place so the miner can be released right away.
	if w.state.ProcessBlocks(w.ctx) {
		done := w.SignalCancelMining()
		done()
	}

	w.state.ProcessTransactions()

	w.SignalStartMining()
}
