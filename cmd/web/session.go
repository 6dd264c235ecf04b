package main

type sessionKey string

const learnerIDSessionKey = sessionKey("learnerID")
const simulationIDSessionKey = sessionKey("simulationID")
