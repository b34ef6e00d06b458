package config

type WorkerKeyStruct struct {
	PersistCheckpointsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistCheckpointsQueue: "persist_checkpoints_queue",
}
