package constants

const USER_AGENT = "trackboard/0.1.0"
