package docstore

// emptyIndexValue is written for an index entry with no projection: the
// index carries no value, only its key's existence matters.
var emptyIndexValue = []byte{}
